package services

// seedBucket is one sample Lagos bucket. AgeDays sets created_at relative to seeding time.
type seedBucket struct {
	Name    string
	Lat     float64
	Lng     float64
	AgeDays int
}

// seedProperty is one sample listing owned by the bucket named Bucket.
type seedProperty struct {
	Title        string
	LocationName string
	Bucket       string
	Lat          float64
	Lng          float64
	Price        float64
	Bedrooms     int
	Bathrooms    int
	AgeDays      int
}

var seedBuckets = []seedBucket{
	// Sangotedo
	{"Sangotedo", 6.4698, 3.6285, 38},
	{"Sangotedo Phase 1", 6.4710, 3.6300, 35},
	{"Sangotedo Estate", 6.4685, 3.6270, 33},
	// Ikeja
	{"Ikeja GRA", 6.6018, 3.3515, 31},
	{"Ikeja CBD", 6.6025, 3.3500, 29},
	{"Ikeja", 6.6030, 3.3490, 27},
	// Lekki
	{"Lekki Phase 1", 6.4442, 3.4616, 25},
	{"Lekki", 6.4750, 3.5780, 24},
	// Victoria Island
	{"Victoria Island", 6.4289, 3.4210, 22},
	{"VI", 6.4275, 3.4230, 21},
	// Ajah
	{"Ajah", 6.4800, 3.6400, 19},
	{"Ajah Lagos", 6.4780, 3.6380, 18},
	// Others
	{"Surulere", 6.5010, 3.3560, 16},
	{"Yaba", 6.5150, 3.3800, 15},
	{"Ikoyi", 6.4520, 3.4350, 14},
	{"Apapa", 6.4480, 3.3600, 12},
	{"Maryland", 6.5750, 3.3650, 11},
	{"Ogba", 6.6200, 3.3300, 10},
}

var seedProperties = []seedProperty{
	{"Luxury Villa Sangotedo", "Sangotedo", "Sangotedo", 6.4698, 3.6285, 75000000, 5, 4, 9},
	{"Modern Duplex Sangotedo", "Sangotedo", "Sangotedo", 6.4700, 3.6290, 85000000, 6, 5, 8},
	{"Affordable Bungalow Sangotedo", "Sangotedo", "Sangotedo", 6.4695, 3.6280, 35000000, 3, 2, 7},
	{"Phase 1 Luxury Apartment", "Sangotedo Phase 1", "Sangotedo Phase 1", 6.4712, 3.6305, 65000000, 4, 3, 6},
	{"Phase 1 Townhouse", "Sangotedo Phase 1", "Sangotedo Phase 1", 6.4708, 3.6298, 55000000, 4, 3, 6},
	{"GRA Executive Duplex", "Ikeja GRA", "Ikeja GRA", 6.6020, 3.3520, 120000000, 5, 4, 5},
	{"GRA Mini Estate", "Ikeja GRA", "Ikeja GRA", 6.6015, 3.3510, 180000000, 8, 6, 5},
	{"CBD Office Space", "Ikeja Central Business District", "Ikeja CBD", 6.6028, 3.3505, 300000000, 0, 10, 4},
	{"CBD Commercial Plaza", "Ikeja CBD", "Ikeja CBD", 6.6020, 3.3495, 500000000, 0, 15, 3},
	{"Lekki Waterfront Villa", "Lekki Phase 1", "Lekki Phase 1", 6.4445, 3.4620, 280000000, 7, 6, 3},
	{"Phase 1 Luxury Penthouse", "Lekki Phase 1", "Lekki Phase 1", 6.4438, 3.4610, 350000000, 6, 5, 2},
	{"VI Luxury Penthouse", "Victoria Island", "Victoria Island", 6.4292, 3.4215, 500000000, 5, 4, 1},
	{"VI Executive Suite", "Victoria Island Lagos", "Victoria Island", 6.4285, 3.4205, 320000000, 4, 3, 0},
}
