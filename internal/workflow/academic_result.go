package workflow

// ResultStatus is the lifecycle state of an academic result.
type ResultStatus string

const (
	ResultDraft     ResultStatus = "DRAFT"
	ResultSubmitted ResultStatus = "SUBMITTED"
	ResultApproved  ResultStatus = "APPROVED"
	ResultPublished ResultStatus = "PUBLISHED"
)

// ResultAction is a request to move an academic result forward (or back, for reject).
type ResultAction string

const (
	ResultSubmit  ResultAction = "submit"
	ResultApprove ResultAction = "approve"
	ResultReject  ResultAction = "reject"
	ResultPublish ResultAction = "publish"
)

var resultTable = table[ResultStatus, ResultAction]{
	ResultDraft:     {ResultSubmit: ResultSubmitted},
	ResultSubmitted: {ResultApprove: ResultApproved, ResultReject: ResultDraft},
	ResultApproved:  {ResultPublish: ResultPublished},
}

// NextResultStatus returns the state reached by applying action to current.
func NextResultStatus(current ResultStatus, action ResultAction) (ResultStatus, error) {
	return resultTable.next("academic result", current, action)
}

// ResultSources lists the states from which action is legal. Bulk updates use it as an
// exact-match guard in their WHERE clause.
func ResultSources(action ResultAction) []ResultStatus {
	return resultTable.sources(action)
}

// Valid reports whether s is a known status.
func (s ResultStatus) Valid() bool {
	switch s {
	case ResultDraft, ResultSubmitted, ResultApproved, ResultPublished:
		return true
	}
	return false
}

// Editable reports whether scores and comments may still change.
func (s ResultStatus) Editable() bool {
	return s == ResultDraft
}
