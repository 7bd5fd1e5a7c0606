package state

import "fmt"

// PState is a PSTATE bit position. Each flag occupies its own 4-byte slot in
// the register file, indexed by the bit position.
type PState int

// PSTATE flags.
const (
	TFlag   PState = 5
	EFlag   PState = 9
	GE0Flag PState = 16
	GE1Flag PState = 17
	GE2Flag PState = 18
	GE3Flag PState = 19
	QFlag   PState = 27
	VFlag   PState = 28
	CFlag   PState = 29
	ZFlag   PState = 30
	NFlag   PState = 31
)

var pstateNames = map[PState]string{
	TFlag: "t", EFlag: "e",
	GE0Flag: "ge0", GE1Flag: "ge1", GE2Flag: "ge2", GE3Flag: "ge3",
	QFlag: "q", VFlag: "v", CFlag: "c", ZFlag: "z", NFlag: "n",
}

func (f PState) String() string {
	if n, ok := pstateNames[f]; ok {
		return n
	}

	return fmt.Sprintf("pstate%d", int(f))
}

// FPState is an FPSR or FPCR bit position.
type FPState int

// FP status (FPSR) and control (FPCR) flags.
const (
	IocFlag    FPState = 0
	DzcFlag    FPState = 1
	OfcFlag    FPState = 2
	UfcFlag    FPState = 3
	IxcFlag    FPState = 4
	IdcFlag    FPState = 7
	IoeFlag    FPState = 8
	DzeFlag    FPState = 9
	OfeFlag    FPState = 10
	UfeFlag    FPState = 11
	IxeFlag    FPState = 12
	IdeFlag    FPState = 15
	RMode0Flag FPState = 22
	RMode1Flag FPState = 23
	FzFlag     FPState = 24
	DnFlag     FPState = 25
	AhpFlag    FPState = 26
	QcFlag     FPState = 27
	FpVFlag    FPState = 28
	FpCFlag    FPState = 29
	FpZFlag    FPState = 30
	FpNFlag    FPState = 31
)

// FpsrMask and FpcrMask select the bits of each architectural register that
// live in the FP state flag slots.
const (
	FpsrMask uint32 = 1<<IocFlag | 1<<DzcFlag | 1<<OfcFlag | 1<<UfcFlag | 1<<IxcFlag |
		1<<IdcFlag | 1<<QcFlag | 1<<FpVFlag | 1<<FpCFlag | 1<<FpZFlag | 1<<FpNFlag
	FpcrMask uint32 = 1<<IoeFlag | 1<<DzeFlag | 1<<OfeFlag | 1<<UfeFlag | 1<<IxeFlag |
		1<<IdeFlag | 1<<RMode0Flag | 1<<RMode1Flag | 1<<FzFlag | 1<<DnFlag | 1<<AhpFlag
)

func (f FPState) String() string {
	names := [...]string{
		IocFlag: "ioc", DzcFlag: "dzc", OfcFlag: "ofc", UfcFlag: "ufc", IxcFlag: "ixc",
		IdcFlag: "idc", IoeFlag: "ioe", DzeFlag: "dze", OfeFlag: "ofe", UfeFlag: "ufe",
		IxeFlag: "ixe", IdeFlag: "ide", RMode0Flag: "rmode0", RMode1Flag: "rmode1",
		FzFlag: "fz", DnFlag: "dn", AhpFlag: "ahp", QcFlag: "qc",
		FpVFlag: "v", FpCFlag: "c", FpZFlag: "z", FpNFlag: "n",
	}

	if f >= 0 && int(f) < len(names) && names[f] != "" {
		return names[f]
	}

	return fmt.Sprintf("fpstate%d", int(f))
}
