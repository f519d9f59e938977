package models

import "testing"

func TestJurisdictionLevel_Next(t *testing.T) {
	tests := []struct {
		from JurisdictionLevel
		want JurisdictionLevel
	}{
		{LevelWard, LevelBlock},
		{LevelBlock, LevelDistrict},
		{LevelDistrict, LevelCity},
		{LevelCity, LevelState},
		{LevelState, LevelState},
		{JurisdictionLevel("village"), LevelState},
		{JurisdictionLevel(""), LevelState},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			if got := tt.from.Next(); got != tt.want {
				t.Errorf("Next() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestJurisdictionFor(t *testing.T) {
	tests := []struct {
		name string
		loc  Location
		want JurisdictionLevel
	}{
		{"ward wins", Location{Ward: "Ward 12", Block: "B", District: "South"}, LevelWard},
		{"block next", Location{Block: "B", District: "South"}, LevelBlock},
		{"district only", Location{District: "South"}, LevelDistrict},
		{"nothing", Location{City: "Bangalore"}, LevelCity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JurisdictionFor(tt.loc); got != tt.want {
				t.Errorf("JurisdictionFor() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestContractor_HasSpecialization(t *testing.T) {
	c := &Contractor{Specializations: []Category{CategoryWater, CategorySewage}}
	if !c.HasSpecialization(CategorySewage) {
		t.Error("expected SEWAGE specialization")
	}
	if c.HasSpecialization(CategoryRoads) {
		t.Error("unexpected ROADS specialization")
	}
}

func TestBlendRating(t *testing.T) {
	tests := []struct {
		current float64
		rating  int
		want    float64
	}{
		{4.0, 5, 4.3},
		{4.5, 1, 3.45},
		{0, 5, 1.5},
		{3.33, 4, 3.53},
	}
	for _, tt := range tests {
		if got := BlendRating(tt.current, tt.rating); got != tt.want {
			t.Errorf("BlendRating(%v, %d) = %v, want %v", tt.current, tt.rating, got, tt.want)
		}
	}
}
