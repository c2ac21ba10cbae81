package events

const KindStatusUpdated Kind = "status.updated"

type StatusUpdated struct {
	Base
	Status string
}

func NewStatusUpdated(status string) StatusUpdated {
	return StatusUpdated{Base: NewBase(KindStatusUpdated), Status: status}
}
