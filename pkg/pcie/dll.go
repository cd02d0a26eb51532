package pcie

// Data link layer protocol overhead. ACK DLLPs and flow control updates
// are sent at the intervals recommended by the PCIe base specification
// (rev 5.0 tables 2-46..2-48 and 3-7..3-9), indexed by link width and MPS.
// Gen4 and later reuse the Gen3 figures; Gen6 and Gen7 values are not
// published for this purpose.

const (
	ackSize      = 8 // 2 bytes framing + 4 bytes DLLP + 2 bytes DLLP CRC
	fcUpdateSize = 8
	skipInterval = 1538
	skipLength   = 4
)

// updateTable is indexed by [lane index][mps index], following the order
// of LaneWidths and PayloadSizes
type updateTable [6][6]int

func ackLimits(g Generation) updateTable {
	switch g {
	case Gen1:
		return updateTable{
			{237, 416, 559, 1071, 2095, 4143},
			{128, 217, 289, 545, 1057, 2081},
			{73, 118, 154, 282, 538, 1050},
			{67, 107, 86, 150, 278, 534},
			{48, 72, 86, 150, 278, 534},
			{33, 45, 52, 84, 148, 276},
		}
	case Gen2:
		return updateTable{
			{288, 467, 610, 1122, 2146, 4194},
			{179, 268, 340, 596, 1108, 2132},
			{124, 169, 205, 333, 589, 1101},
			{118, 158, 137, 201, 329, 585},
			{99, 123, 137, 201, 329, 585},
			{84, 96, 103, 135, 199, 237},
		}
	}
	return updateTable{
		{333, 512, 655, 1167, 2191, 4239},
		{224, 313, 385, 641, 1153, 2177},
		{169, 214, 250, 378, 634, 1146},
		{163, 203, 182, 246, 374, 630},
		{144, 168, 182, 246, 374, 630},
		{129, 141, 148, 180, 244, 372},
	}
}

func fcUpdateIntervals(g Generation) updateTable {
	t := ackLimits(g)
	switch g {
	case Gen1:
		t[5][4] = 248
	case Gen2:
		t[5][5] = 327
	}
	return t
}

func tableIndex(lanes Lanes, mps int) (int, int, bool) {
	li, mi := -1, -1
	for i, l := range LaneWidths() {
		if l == lanes {
			li = i
		}
	}
	for i, m := range PayloadSizes() {
		if m == mps {
			mi = i
		}
	}
	return li, mi, li >= 0 && mi >= 0
}

// dataLinkOverhead returns the fraction of link time not available to TLPs
func dataLinkOverhead(g Generation, lanes Lanes, mps int) float64 {
	li, mi, ok := tableIndex(lanes, mps)
	if !ok {
		return 0
	}
	ack := float64(ackSize) / float64(ackLimits(g)[li][mi])
	fc := float64(fcUpdateSize) / float64(fcUpdateIntervals(g)[li][mi])
	skip := float64(skipLength) / float64(skipInterval)
	return ack + fc + skip
}
