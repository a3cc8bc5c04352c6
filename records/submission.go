// Package records is the Record Repository: submissions stored one per row of
// a tabular backing store (a spreadsheet or something that behaves like one).
package records

// Status is the processing state of a submission.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
)

// Column positions in the backing store, left to right.  The header row
// carries the names in Header.
const (
	ColTime = iota
	ColGroupID
	ColName
	ColPhone
	ColExternalUserID
	ColFileLink
	ColStatus
	ColPurpose
	ColApplyDate
	ColRecordID
	NumColumns
)

// Header is the header row written above the data rows.
var Header = []string{
	"time", "groupId", "name", "phone", "externalUserId",
	"fileLink", "status", "purpose", "applyDate", "recordId",
}

// Submission is one document-upload record.  ID is the 0-based position of
// the row within the List snapshot that produced it and is meaningless
// outside that snapshot; RecordID is stable for the life of the row.
type Submission struct {
	ID             int    `json:"id"`
	RecordID       string `json:"recordId,omitempty"`
	Time           string `json:"time"`
	GroupID        string `json:"groupId"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	ExternalUserID string `json:"externalUserId,omitempty"`
	FileLink       string `json:"fileLink"`
	Status         Status `json:"status"`
	Purpose        string `json:"purpose"`
	ApplyDate      string `json:"applyDate"`
}

func (s Submission) row() []string {
	row := make([]string, NumColumns)
	row[ColTime] = s.Time
	row[ColGroupID] = s.GroupID
	row[ColName] = s.Name
	row[ColPhone] = s.Phone
	row[ColExternalUserID] = s.ExternalUserID
	row[ColFileLink] = s.FileLink
	row[ColStatus] = string(s.Status)
	row[ColPurpose] = s.Purpose
	row[ColApplyDate] = s.ApplyDate
	row[ColRecordID] = s.RecordID
	return row
}

func fromRow(id int, row []string) Submission {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return Submission{
		ID:             id,
		RecordID:       cell(ColRecordID),
		Time:           cell(ColTime),
		GroupID:        cell(ColGroupID),
		Name:           cell(ColName),
		Phone:          cell(ColPhone),
		ExternalUserID: cell(ColExternalUserID),
		FileLink:       cell(ColFileLink),
		Status:         Status(cell(ColStatus)),
		Purpose:        cell(ColPurpose),
		ApplyDate:      cell(ColApplyDate),
	}
}
