package op

type (
	// Action is one level of a fused multideref.
	// Low bits are the access kind, then the index kind.
	Action uint8

	Item struct {
		Act  Action
		Targ int    // pad slot of the start container
		Name string // global name for gv starts

		IdxTarg int   // pad slot of the index variable
		Index   int64 // constant array index
		Key     int   // offset of a constant hash key in Aux.Keys
		KeyLen  int
	}

	Aux struct {
		Items []Item
		Keys  []byte
	}
)

const (
	ActPadavAelem Action = iota + 1
	ActPadhvHelem
	ActGvavAelem
	ActGvhvHelem
	ActPadsvRv2avAelem
	ActPadsvRv2hvHelem
	ActRv2avAelem
	ActRv2hvHelem

	ActMask Action = 0xf

	IdxConst Action = 1 << 4
	IdxPadsv Action = 2 << 4
	IdxMask  Action = 3 << 4

	ActUnchecked Action = 1 << 6
)

func (a Action) Kind() Action  { return a & ActMask }
func (a Action) Index() Action { return a & IdxMask }

// Hash reports whether the level indexes a hash.
func (a Action) Hash() bool {
	switch a.Kind() {
	case ActPadhvHelem, ActGvhvHelem, ActPadsvRv2hvHelem, ActRv2hvHelem:
		return true
	}

	return false
}

// Start reports whether the level begins a chain.
func (a Action) Start() bool {
	switch a.Kind() {
	case ActRv2avAelem, ActRv2hvHelem:
		return false
	}

	return true
}

func (a Action) String() string {
	var s string

	switch a.Kind() {
	case ActPadavAelem:
		s = "padav_aelem"
	case ActPadhvHelem:
		s = "padhv_helem"
	case ActGvavAelem:
		s = "gvav_aelem"
	case ActGvhvHelem:
		s = "gvhv_helem"
	case ActPadsvRv2avAelem:
		s = "padsv_rv2av_aelem"
	case ActPadsvRv2hvHelem:
		s = "padsv_rv2hv_helem"
	case ActRv2avAelem:
		s = "rv2av_aelem"
	case ActRv2hvHelem:
		s = "rv2hv_helem"
	default:
		s = "bad"
	}

	switch a.Index() {
	case IdxConst:
		s += "_const"
	case IdxPadsv:
		s += "_padsv"
	}

	if a&ActUnchecked != 0 {
		s += "_u"
	}

	return s
}

func (x *Aux) KeyAt(it Item) string {
	return string(x.Keys[it.Key : it.Key+it.KeyLen])
}
