package export

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/charm-heritage/market-cli/internal/model"
)

// WriteWorkbook writes an XLSX workbook with a Jobs sheet and a Summary sheet.
// It is the spreadsheet-sync artifact, gated by configuration.
func WriteWorkbook(jobs []model.JobPosting, snap model.AnalysisSnapshot, path string) error {
	file := xlsx.NewFile()

	jobsSheet, err := file.AddSheet("Jobs")
	if err != nil {
		return eris.Wrap(err, "export: add jobs sheet")
	}
	writeRow(jobsSheet, jobColumns)
	for _, j := range jobs {
		writeRow(jobsSheet, buildJobRow(j))
	}

	summarySheet, err := file.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	writeRow(summarySheet, []string{"metric", "value"})
	writeRow(summarySheet, []string{"run_at", snap.RunAt.Format("2006-01-02 15:04:05 UTC")})
	writeRow(summarySheet, []string{"num_jobs", strconv.Itoa(snap.NumJobs)})
	writeRow(summarySheet, []string{"unique_employers", strconv.Itoa(snap.UniqueEmployers)})
	writeRow(summarySheet, []string{"geocoded", strconv.Itoa(snap.Geocoded)})
	if snap.Salary != nil {
		writeRow(summarySheet, []string{"salary_sample_size", strconv.Itoa(snap.Salary.SampleSize)})
		writeRow(summarySheet, []string{"salary_mean_annual", strconv.FormatFloat(snap.Salary.MeanAnnual, 'f', 2, 64)})
	}

	writeRow(summarySheet, nil)
	writeRow(summarySheet, []string{"top skills", "count"})
	for _, s := range snap.TopSkills {
		writeRow(summarySheet, []string{s.Skill, strconv.Itoa(s.Count)})
	}

	writeRow(summarySheet, nil)
	writeRow(summarySheet, []string{"top employers", "count"})
	for _, e := range snap.TopEmployers {
		writeRow(summarySheet, []string{e.Employer, strconv.Itoa(e.Count)})
	}

	return eris.Wrap(file.Save(path), "export: save workbook")
}

func writeRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, value := range cells {
		cell := row.AddCell()
		// Excel caps cell contents; long descriptions get trimmed, the CSV
		// remains the lossless export.
		if len(value) > 32000 {
			value = value[:32000]
		}
		cell.Value = value
	}
}
