package knowledge

import (
	"fmt"
	"strings"

	"github.com/walson-a/atlasbot/internal/content"
)

// Doc is one rendered source document, split into retrievable sections.
// Joining Sections with blank lines reproduces the full document, which the
// builder also writes out as Markdown for inspection.
type Doc struct {
	// Name is the base name of the Markdown rendering (without extension).
	Name string

	// Sections holds one chunk per document section, in template order.
	// Rendering is deterministic: the same record always produces the
	// same sections, byte for byte.
	Sections []string

	// Metadata is attached to every item built from this document.
	Metadata map[string]string
}

// Content returns the full document text.
func (d Doc) Content() string {
	return strings.Join(d.Sections, "\n\n")
}

// ChunkProject renders one project record into a sectioned document.
// Each section carries a single fact group (description, role, stack, ...)
// so retrieval can surface it without pulling the whole write-up.
func ChunkProject(p content.Project) Doc {
	sections := []string{
		fmt.Sprintf("# Projet: %s (%s)", p.Title, p.Slug),
		"## Description Courte\n" + p.ShortDescription,
		"## Description Détaillée\n" + p.LongDescription,
		"## Rôle\n" + p.Role,
		"## Stack Technique\n" + strings.Join(p.Stack, ", "),
		"## Détails Techniques\n" + orDefault(p.TechnicalDetails, "Non spécifié"),
		fmt.Sprintf("## Statut\n%s (%s) - Durée: %s", p.Status, p.Date, p.Duration),
	}

	if len(p.Contributors) > 0 {
		var b strings.Builder
		b.WriteString("## Contributeurs")
		for _, c := range p.Contributors {
			fmt.Fprintf(&b, "\n- %s (%s)", c.Name, c.GitHub)
		}
		sections = append(sections, b.String())
	}
	if p.GitHub != "" {
		sections = append(sections, "## GitHub\n"+p.GitHub)
	}
	if p.Link != "" {
		sections = append(sections, "## Lien\n"+p.Link)
	}

	return Doc{
		Name:     "project-" + p.Slug,
		Sections: sections,
		Metadata: map[string]string{
			"type":  "project",
			"slug":  p.Slug,
			"title": p.Title,
		},
	}
}

// ChunkTimeline renders the whole timeline as one document with a section
// per event.
func ChunkTimeline(displayName string, events []content.TimelineEvent) Doc {
	sections := []string{
		fmt.Sprintf("# Parcours et Expériences de %s", displayName),
	}

	for _, e := range events {
		var b strings.Builder
		fmt.Fprintf(&b, "## %d - %s (%s)", e.Year, e.Label, e.Type)
		fmt.Fprintf(&b, "\n- **Lieu**: %s", orDefault(e.Location, "Non spécifié"))
		fmt.Fprintf(&b, "\n- **Description**: %s", e.Description)
		fmt.Fprintf(&b, "\n- **Tags**: %s", orDefault(strings.Join(e.Tags, ", "), "Aucun"))
		sections = append(sections, b.String())
	}

	return Doc{
		Name:     "profile-timeline",
		Sections: sections,
		Metadata: map[string]string{"type": "timeline"},
	}
}

// GlobalSummary composes the single always-injected summary document:
// identity and availability facts, the full skills list, and a one-line
// index of every project and timeline event.
func GlobalSummary(p *content.Portfolio) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Résumé Global du Portfolio de %s (Source de Vérité)\n\n", p.Profile.DisplayName)

	b.WriteString("## Identité & Contact\n")
	fmt.Fprintf(&b, "- **Nom complet**: %s\n", p.Profile.FullName)
	fmt.Fprintf(&b, "- **Nom préféré**: %s\n", p.Profile.DisplayName)
	fmt.Fprintf(&b, "- **Rôle**: %s\n", p.Profile.Role)
	fmt.Fprintf(&b, "- **Formation**: %s\n", p.Profile.Education)
	fmt.Fprintf(&b, "- **Localisation**: %s\n", p.Profile.Location)
	fmt.Fprintf(&b, "- **Email**: %s\n", p.Profile.Email)
	fmt.Fprintf(&b, "- **Téléphone**: %s\n", p.Profile.Phone)
	fmt.Fprintf(&b, "- **LinkedIn**: %s\n", p.Profile.LinkedIn)
	fmt.Fprintf(&b, "- **GitHub**: %s\n", p.Profile.GitHub)
	b.WriteString("- **Disponibilité**:\n")
	for _, a := range p.Profile.Availability {
		fmt.Fprintf(&b, "    - %s\n", a)
	}

	b.WriteString("\n## À Propos\n")
	b.WriteString(strings.Join(p.Profile.About, "\n\n"))
	b.WriteString("\n")

	b.WriteString("\n## Compétences Techniques (Tech Stack)\n")
	for _, cat := range p.Profile.Skills {
		fmt.Fprintf(&b, "- **%s**: %s.\n", cat.Category, strings.Join(cat.Items, ", "))
	}

	fmt.Fprintf(&b, "\n## Vue d'ensemble des Projets (%d projets principaux)\n", len(p.Projects))
	for _, pr := range p.Projects {
		fmt.Fprintf(&b, "- **%s** (%s): %s. [Stack: %s]. Rôle: %s. Statut: %s.\n",
			pr.Title, pr.Date, pr.ShortDescription, strings.Join(pr.Stack, ", "), pr.Role, pr.Status)
	}

	b.WriteString("\n## Parcours (Timeline)\n")
	for _, e := range p.Timeline {
		fmt.Fprintf(&b, "- **%d**: %s (%s) - %s\n", e.Year, e.Label, e.Type, e.Description)
	}

	return strings.TrimRight(b.String(), "\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
