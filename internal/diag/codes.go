package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// configuration
	CfgInvalid Code = 1000

	// resolution
	ResNotFound     Code = 2001
	ResReadFailed   Code = 2002
	ResEntryMissing Code = 2003

	// loaders
	LdrFailed     Code = 3001
	LdrNoLoader   Code = 3002
	LdrCancelled  Code = 3003
	LdrBadOptions Code = 3004

	// emission
	EmitWriteFailed   Code = 4001
	EmitPathConflict  Code = 4002
	EmitBadTemplate   Code = 4003
	EmitAuxiliaryFail Code = 4004
)

var codeNames = map[Code]string{
	UnknownCode:       "UNKNOWN",
	CfgInvalid:        "CFG1000",
	ResNotFound:       "RES2001",
	ResReadFailed:     "RES2002",
	ResEntryMissing:   "RES2003",
	LdrFailed:         "LDR3001",
	LdrNoLoader:       "LDR3002",
	LdrCancelled:      "LDR3003",
	LdrBadOptions:     "LDR3004",
	EmitWriteFailed:   "EMT4001",
	EmitPathConflict:  "EMT4002",
	EmitBadTemplate:   "EMT4003",
	EmitAuxiliaryFail: "EMT4004",
}

func (c Code) ID() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("E%04d", uint16(c))
}

func (c Code) String() string {
	return c.ID()
}
