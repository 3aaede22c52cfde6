package op

type (
	Flags uint16
	Priv  uint16
	Want  uint8
)

const (
	WantUnknown Want = iota // decided by the caller at run time
	WantVoid
	WantScalar
	WantList
)

const (
	FlagWant Flags = 3 // mask for Want

	FlagKids Flags = 1 << (iota + 1)
	FlagParens
	FlagRef
	FlagMod
	FlagStacked
	FlagSpecial
)

const (
	PrivIntro Priv = 1 << iota
	PrivDerefAV
	PrivDerefHV
	PrivTrueBool
	PrivMaybeTrueBool
	PrivExists
	PrivDelete
	PrivShortCircuit
	PrivFolded
	PrivLocale
)

func (w Want) String() string {
	switch w {
	case WantVoid:
		return "void"
	case WantScalar:
		return "scalar"
	case WantList:
		return "list"
	}

	return "unknown"
}
