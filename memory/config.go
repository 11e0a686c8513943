package memory

const (
	PageShift = 12
	PageSize  = 1 << PageShift // 4kb, must match the hardware page granularity

	// Sv39: three 9 bit indices above the 12 bit page offset
	PageLevels      = 3
	LevelBits       = 9
	EntrySize       = 8
	EntriesPerTable = PageSize / EntrySize

	VirtualAddressBits = PageShift + PageLevels*LevelBits
)

const levelMask = (1 << LevelBits) - 1
