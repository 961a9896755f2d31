package models

import "time"

// GridColumns is the fixed column count of the layout grid.
const GridColumns = 12

// GridRowHeight is the pixel height of one grid row unit.
const GridRowHeight = 30

// LayoutCell positions one chart on the grid. ID is the chart id.
type LayoutCell struct {
	ID    string `firestore:"i" json:"i" validate:"required"`
	X     int    `firestore:"x" json:"x" validate:"gte=0,lt=12"`
	Y     int    `firestore:"y" json:"y" validate:"gte=0"`
	W     int    `firestore:"w" json:"w" validate:"gte=1,lte=12"`
	H     int    `firestore:"h" json:"h" validate:"gte=1"`
	MinW  int    `firestore:"minW,omitempty" json:"minW,omitempty" validate:"gte=0,lte=12"`
	MinH  int    `firestore:"minH,omitempty" json:"minH,omitempty" validate:"gte=0"`
	Title string `firestore:"title,omitempty" json:"title,omitempty"`
}

// DashboardConfig holds the chart specs and the raw dataset.
type DashboardConfig struct {
	Charts ChartSet `json:"charts"`
	Data   []Row    `json:"data"`
}

// Dashboard is the persisted dashboard document.
type Dashboard struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	OwnerID     string          `json:"ownerId,omitempty"`
	Layout      []LayoutCell    `json:"layout"`
	Config      DashboardConfig `json:"config"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// DashboardSummary is the list-view projection of a dashboard.
type DashboardSummary struct {
	ID          string    `firestore:"id" json:"id"`
	Name        string    `firestore:"name" json:"name"`
	Description string    `firestore:"description" json:"description"`
	ChartCount  int       `firestore:"-" json:"chartCount"`
	Version     int64     `firestore:"version" json:"version"`
	CreatedAt   time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// DashboardPatch lists the parts of a document a write replaces. Nil
// fields are left untouched.
type DashboardPatch struct {
	Name        *string
	Description *string
	Layout      []LayoutCell
	Charts      ChartSet
	Data        []Row
}

// Field is one entry of the field catalog.
type Field struct {
	Name  string `firestore:"name" json:"name"`
	Label string `firestore:"label" json:"label"`
	Type  string `firestore:"type" json:"type"`
}

// Field types.
const (
	FieldString = "string"
	FieldNumber = "number"
	FieldDate   = "date"
)

// Apply replaces the parts of d named by p.
func (d *Dashboard) Apply(p DashboardPatch) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Layout != nil {
		d.Layout = p.Layout
	}
	if p.Charts != nil {
		d.Config.Charts = p.Charts
	}
	if p.Data != nil {
		d.Config.Data = p.Data
	}
}

// Summary projects d for list views.
func (d *Dashboard) Summary() DashboardSummary {
	return DashboardSummary{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		ChartCount:  len(d.Config.Charts),
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
