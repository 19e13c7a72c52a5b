// Package content defines the portfolio source records consumed by the
// knowledge builder: projects, timeline events and the profile sheet.
//
// Records are opaque inputs maintained by hand under the data directory;
// this package only decodes them, it performs no semantic validation.
package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Contributor identifies an external collaborator on a project.
type Contributor struct {
	Name   string `json:"name"`
	GitHub string `json:"github"`
}

// Project is one portfolio project entry.
type Project struct {
	Slug             string        `json:"slug"`
	Title            string        `json:"title"`
	ShortDescription string        `json:"shortDescription"`
	LongDescription  string        `json:"longDescription"`
	Role             string        `json:"role"`
	Stack            []string      `json:"stack"`
	TechnicalDetails string        `json:"technicalDetails,omitempty"`
	Status           string        `json:"status"`
	Date             string        `json:"date"`
	Duration         string        `json:"duration"`
	Contributors     []Contributor `json:"contributors,omitempty"`
	GitHub           string        `json:"github,omitempty"`
	Link             string        `json:"link,omitempty"`
}

// TimelineEvent is one entry of the career/education timeline.
type TimelineEvent struct {
	Year        int      `json:"year"`
	Type        string   `json:"type"` // "project", "school" or "work"
	Label       string   `json:"label"`
	Subtitle    string   `json:"subtitle,omitempty"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Slug        string   `json:"slug,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Profile aggregates the identity, contact and availability facts that feed
// the global summary document.
type Profile struct {
	FullName     string          `json:"fullName"`
	DisplayName  string          `json:"displayName"`
	Role         string          `json:"role"`
	Education    string          `json:"education"`
	Location     string          `json:"location"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	LinkedIn     string          `json:"linkedin"`
	GitHub       string          `json:"github"`
	Availability []string        `json:"availability"`
	About        []string        `json:"about"`
	Skills       []SkillCategory `json:"skills"`
}

// SkillCategory groups skills under a named category, preserving the order
// of the source record so rendered documents stay deterministic.
type SkillCategory struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

// Portfolio bundles every source record set for a build run.
type Portfolio struct {
	Profile  Profile
	Projects []Project
	Timeline []TimelineEvent
}

// Load reads projects.json, timeline.json and profile.json from dir.
func Load(dir string) (*Portfolio, error) {
	var p Portfolio

	if err := readJSON(filepath.Join(dir, "profile.json"), &p.Profile); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "projects.json"), &p.Projects); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "timeline.json"), &p.Timeline); err != nil {
		return nil, err
	}

	return &p, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}
