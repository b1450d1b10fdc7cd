package instance

import (
	"encoding/json"
	"time"

	"github.com/JakeFAU/cortex-connector/internal/connector"
)

type statusPayload struct {
	Versions map[string]string `json:"versions"`
}

type analyzerPayload struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description"`
	DataTypeList []string `json:"dataTypeList"`
}

func (p analyzerPayload) toAnalyzer(instanceID string) connector.Analyzer {
	return connector.Analyzer{
		ID:          p.ID,
		Name:        p.Name,
		Version:     p.Version,
		Description: p.Description,
		DataTypes:   p.DataTypeList,
		InstanceID:  instanceID,
	}
}

type runPayload struct {
	DataType   string         `json:"dataType,omitempty"`
	Data       string         `json:"data,omitempty"`
	TLP        int            `json:"tlp"`
	Message    string         `json:"message,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// jobPayload is the engine's job document. Dates are epoch milliseconds.
type jobPayload struct {
	ID           string `json:"id"`
	AnalyzerID   string `json:"analyzerId"`
	AnalyzerName string `json:"analyzerName"`
	DataType     string `json:"dataType"`
	Status       string `json:"status"`
	StartDate    *int64 `json:"startDate"`
	EndDate      *int64 `json:"endDate"`
}

func (p jobPayload) toJob(instanceID string) connector.Job {
	return connector.Job{
		ID:           p.ID,
		InstanceID:   instanceID,
		AnalyzerID:   p.AnalyzerID,
		AnalyzerName: p.AnalyzerName,
		DataType:     p.DataType,
		Status:       connector.JobStatus(p.Status),
		StartDate:    millis(p.StartDate),
		EndDate:      millis(p.EndDate),
	}
}

type reportPayload struct {
	jobPayload
	Report *struct {
		Success      bool              `json:"success"`
		ErrorMessage string            `json:"errorMessage"`
		Summary      json.RawMessage   `json:"summary"`
		Full         json.RawMessage   `json:"full"`
		Artifacts    []artifactPayload `json:"artifacts"`
	} `json:"report"`
}

type artifactPayload struct {
	DataType string `json:"dataType"`
	Data     string `json:"data"`
	Message  string `json:"message"`
}

func (p reportPayload) toReport(instanceID string) connector.Report {
	report := connector.Report{
		JobID:      p.ID,
		InstanceID: instanceID,
		Status:     connector.JobStatus(p.Status),
	}
	if p.Report == nil {
		return report
	}
	report.Success = p.Report.Success
	report.ErrorMessage = p.Report.ErrorMessage
	report.Summary = p.Report.Summary
	report.Full = p.Report.Full
	for _, a := range p.Report.Artifacts {
		report.Artifacts = append(report.Artifacts, connector.ReportArtifact{
			DataType: a.DataType,
			Data:     a.Data,
			Message:  a.Message,
		})
	}
	return report
}

func millis(v *int64) *time.Time {
	if v == nil || *v == 0 {
		return nil
	}
	t := time.UnixMilli(*v).UTC()
	return &t
}
