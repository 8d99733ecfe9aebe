package sealevel

const (
	CUSystemProgramDefaultComputeUnits = 150
	CUMemoProgramDefaultComputeUnits   = 100
	CUMemoProgramPerSignerUnits        = 25
)

const DefaultComputeUnitLimit = 200_000
