package saa

// SwiftPoints is the Swift SAA polygon, also flown for NICER.
var SwiftPoints = []Point{
	{39.0, -30.0},
	{36.0, -26.0},
	{28.0, -21.0},
	{6.0, -12.0},
	{-5.0, -6.0},
	{-21.0, 2.0},
	{-30.0, 3.0},
	{-45.0, 2.0},
	{-60.0, -2.0},
	{-75.0, -7.0},
	{-83.0, -10.0},
	{-87.0, -16.0},
	{-86.0, -23.0},
	{-83.0, -30.0},
}

// FermiPoints is the Fermi GBM SAA polygon.
var FermiPoints = []Point{
	{33.9, -30.0},
	{24.5, -22.6},
	{-18.6, -2.5},
	{-25.7, -5.2},
	{-36.0, -5.2},
	{-42.0, -4.6},
	{-58.8, -0.7},
	{-93.1, -8.6},
	{-97.5, -9.9},
	{-98.5, -12.5},
	{-92.1, -21.7},
	{-86.1, -30.0},
}

// BurstCubePoints is the BurstCube SAA polygon. The ring is explicitly
// closed; NewRegion drops the repeated vertex.
var BurstCubePoints = []Point{
	{33.9, -30.0},
	{12.398, -19.876},
	{-9.103, -9.733},
	{-30.605, 0.4},
	{-38.4, 2.0},
	{-45.0, 2.0},
	{-65.0, -1.0},
	{-84.0, -6.155},
	{-89.2, -8.880},
	{-94.3, -14.220},
	{-94.3, -18.404},
	{-84.48631, -31.84889},
	{-86.1, -30.0},
	{-72.34921, -43.98599},
	{-54.5587, -52.5815},
	{-28.1917, -53.6258},
	{-0.2095279, -46.88834},
	{28.8026, -34.0359},
	{33.9, -30.0},
}

var (
	Swift     = MustRegion(SwiftPoints)
	NICER     = MustRegion(SwiftPoints)
	Fermi     = MustRegion(FermiPoints)
	BurstCube = MustRegion(BurstCubePoints)
)
