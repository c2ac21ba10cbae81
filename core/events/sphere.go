package events

const (
	KindSphereStateChanged Kind = "sphere.state_changed"
)

type SphereStateChanged struct {
	Base
	From string
	To   string
}

func NewSphereStateChanged(from, to string) SphereStateChanged {
	return SphereStateChanged{Base: NewBase(KindSphereStateChanged), From: from, To: to}
}
