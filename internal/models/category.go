package models

// Category is the closed set of infrastructure problem categories.
type Category string

const (
	CategoryRoads        Category = "ROADS"
	CategoryElectricity  Category = "ELECTRICITY"
	CategoryWater        Category = "WATER"
	CategorySanitation   Category = "SANITATION"
	CategoryPublicSpaces Category = "PUBLIC_SPACES"
	CategoryEducation    Category = "EDUCATION"
	CategoryHealth       Category = "HEALTH"
	CategoryFlooding     Category = "FLOODING"
	CategoryFireHazard   Category = "FIRE_HAZARD"
	CategoryConstruction Category = "CONSTRUCTION"
	CategoryStrayAnimals Category = "STRAY_ANIMALS"
	CategorySewage       Category = "SEWAGE"
	// CategoryOther is assigned when no known category matches.
	CategoryOther Category = "OTHER"
)

// DefaultDepartment handles anything the department table does not cover.
const DefaultDepartment = "General Administration"

// DefaultMaterials is used for categories without a materials hint.
const DefaultMaterials = "To be determined on site inspection"

// categoryPriority is the order used to break keyword-count ties, most
// dangerous first.
var categoryPriority = []Category{
	CategoryFireHazard,
	CategoryFlooding,
	CategoryElectricity,
	CategorySewage,
	CategoryWater,
	CategoryRoads,
	CategoryHealth,
	CategoryStrayAnimals,
	CategoryConstruction,
	CategorySanitation,
	CategoryPublicSpaces,
	CategoryEducation,
}

// categoryInfo holds the static routing and costing data for a category.
type categoryInfo struct {
	department   string
	defaultScore int
	baseCost     float64
	materials    string
	keywords     []string
}

var categoryTable = map[Category]categoryInfo{
	CategoryRoads: {
		department:   "Public Works Department",
		defaultScore: 60,
		baseCost:     5000,
		materials:    "Asphalt, gravel, road markers, barriers",
		keywords:     []string{"pothole", "road", "street", "asphalt", "footpath", "pavement", "speed breaker", "traffic signal", "crater"},
	},
	CategoryElectricity: {
		department:   "Electricity Board",
		defaultScore: 75,
		baseCost:     3000,
		materials:    "Wiring, transformers, LED bulbs, poles",
		keywords:     []string{"streetlight", "street light", "power cut", "electric", "transformer", "wire", "outage", "pole"},
	},
	CategoryWater: {
		department:   "Water Supply Department",
		defaultScore: 65,
		baseCost:     4000,
		materials:    "PVC pipes, valves, pumps, testing kits",
		keywords:     []string{"water supply", "no water", "pipe", "leak", "tap", "contaminated", "water pressure", "burst"},
	},
	CategorySanitation: {
		department:   "Sanitation Department",
		defaultScore: 45,
		baseCost:     2000,
		materials:    "Cleaning equipment, bins, drain covers",
		keywords:     []string{"garbage", "trash", "waste", "litter", "dustbin", "dump", "sweeping"},
	},
	CategoryPublicSpaces: {
		department:   "Parks & Recreation",
		defaultScore: 35,
		baseCost:     3000,
		materials:    "Lumber, paint, plants, fencing",
		keywords:     []string{"park", "playground", "bench", "garden", "tree", "public toilet"},
	},
	CategoryEducation: {
		department:   "Education Department",
		defaultScore: 40,
		baseCost:     8000,
		keywords:     []string{"school", "classroom", "teacher", "anganwadi", "library"},
	},
	CategoryHealth: {
		department:   "Health Department",
		defaultScore: 60,
		baseCost:     6000,
		keywords:     []string{"hospital", "clinic", "mosquito", "dengue", "disease", "health"},
	},
	CategoryFlooding: {
		department:   "Flood Control Authority",
		defaultScore: 80,
		baseCost:     10000,
		materials:    "Sandbags, pumps, drainage equipment",
		keywords:     []string{"flood", "waterlogging", "waterlogged", "inundated", "submerged", "rainwater"},
	},
	CategoryFireHazard: {
		department:   "Fire Department",
		defaultScore: 85,
		baseCost:     7000,
		materials:    "Extinguishers, barriers, signage",
		keywords:     []string{"fire", "smoke", "burning", "gas leak", "spark", "short circuit"},
	},
	CategoryConstruction: {
		department:   "Building & Construction Authority",
		defaultScore: 50,
		baseCost:     15000,
		keywords:     []string{"construction", "building", "debris", "illegal structure", "collapse", "scaffolding"},
	},
	CategoryStrayAnimals: {
		department:   "Animal Control",
		defaultScore: 55,
		baseCost:     1000,
		keywords:     []string{"stray", "dog", "cattle", "cow", "monkey", "animal"},
	},
	CategorySewage: {
		department:   "Sewage & Drainage Board",
		defaultScore: 70,
		baseCost:     5000,
		materials:    "Manhole covers, drainage pipes, pumps",
		keywords:     []string{"sewage", "sewer", "manhole", "drain", "overflow", "gutter", "stench"},
	},
	CategoryOther: {
		department:   DefaultDepartment,
		defaultScore: 50,
		baseCost:     5000,
	},
}

// Categories returns the known categories in tie-break priority order.
// OTHER is not included.
func Categories() []Category {
	out := make([]Category, len(categoryPriority))
	copy(out, categoryPriority)
	return out
}

// Valid returns true if the category is one of the closed set.
func (c Category) Valid() bool {
	_, ok := categoryTable[c]
	return ok
}

// Department returns the responsible department name.
func (c Category) Department() string {
	if info, ok := categoryTable[c]; ok && info.department != "" {
		return info.department
	}
	return DefaultDepartment
}

// DefaultScore returns the priority score used when risk assessment is
// unavailable.
func (c Category) DefaultScore() int {
	if info, ok := categoryTable[c]; ok {
		return info.defaultScore
	}
	return 50
}

// BaseCost returns the base repair cost for the category.
func (c Category) BaseCost() float64 {
	if info, ok := categoryTable[c]; ok {
		return info.baseCost
	}
	return 5000
}

// Materials returns the materials hint for a work order.
func (c Category) Materials() string {
	if info, ok := categoryTable[c]; ok && info.materials != "" {
		return info.materials
	}
	return DefaultMaterials
}

// Keywords returns the fallback classification keywords.
func (c Category) Keywords() []string {
	return categoryTable[c].keywords
}

// Label returns a human readable form, e.g. "Public Spaces".
func (c Category) Label() string {
	b := []byte(string(c))
	upper := true
	for i, ch := range b {
		switch {
		case ch == '_':
			b[i] = ' '
			upper = true
		case upper:
			upper = false
		case ch >= 'A' && ch <= 'Z':
			b[i] = ch + ('a' - 'A')
		}
	}
	return string(b)
}
