package detector

// Summary counts the interactions held by a Mapper.
type Summary struct {
	Total      int `json:"total_interactions"`
	HoverCount int `json:"hover_count"`
	PopupCount int `json:"popup_count"`
	URLChanges int `json:"url_changes"`
}

// Mapper aggregates discovered interactions in discovery order.
type Mapper struct {
	all   []*Interaction
	hover []*Interaction
	popup []*Interaction
}

// NewMapper creates an empty mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Add records in if it qualifies as a discovery and reports whether it was
// kept.
func (m *Mapper) Add(in *Interaction) bool {
	if !in.Qualifies() {
		return false
	}
	m.all = append(m.all, in)
	switch {
	case in.ActionType == ActionHover:
		m.hover = append(m.hover, in)
	case in.PopupAppeared:
		m.popup = append(m.popup, in)
	}
	return true
}

// All returns every interaction in discovery order.
func (m *Mapper) All() []*Interaction { return m.all }

// Hover returns the hover interactions.
func (m *Mapper) Hover() []*Interaction { return m.hover }

// Popup returns the popup interactions, on click or on load.
func (m *Mapper) Popup() []*Interaction { return m.popup }

// Len returns the number of interactions.
func (m *Mapper) Len() int { return len(m.all) }

// Summary returns aggregate counts.
func (m *Mapper) Summary() Summary {
	s := Summary{
		Total:      len(m.all),
		HoverCount: len(m.hover),
		PopupCount: len(m.popup),
	}
	for _, in := range m.all {
		if in.URLChanged() {
			s.URLChanges++
		}
	}
	return s
}

// PromptTrigger describes a trigger element for prompt construction.
type PromptTrigger struct {
	Description string `json:"description"`
	Text        string `json:"text"`
	Tag         string `json:"tag"`
	Role        string `json:"role"`
}

// PromptRevealed is a revealed element as seen by prompts.
type PromptRevealed struct {
	Description string `json:"description"`
	Text        string `json:"text"`
}

// PromptRecord is a flattened interaction for language model prompts.
type PromptRecord struct {
	ActionType       ActionType       `json:"action_type"`
	Trigger          PromptTrigger    `json:"trigger_element"`
	RevealedElements []PromptRevealed `json:"revealed_elements"`
	URLChanged       bool             `json:"url_changed"`
	URLBefore        string           `json:"url_before"`
	URLAfter         string           `json:"url_after,omitempty"`
	PopupAppeared    bool             `json:"popup_appeared"`
	PopupInfo        *PopupInfo       `json:"popup_info,omitempty"`
	ClickableLinks   []Link           `json:"clickable_links,omitempty"`
}

// ToPromptRecords flattens the interactions for prompt construction.
func (m *Mapper) ToPromptRecords() []PromptRecord {
	records := make([]PromptRecord, 0, len(m.all))
	for _, in := range m.all {
		records = append(records, NewPromptRecord(in))
	}
	return records
}

// NewPromptRecord flattens one interaction.
func NewPromptRecord(in *Interaction) PromptRecord {
	revealed := make([]PromptRevealed, 0, len(in.RevealedElements))
	for _, el := range in.RevealedElements {
		revealed = append(revealed, PromptRevealed{Description: el.Description(), Text: el.Text})
	}
	return PromptRecord{
		ActionType: in.ActionType,
		Trigger: PromptTrigger{
			Description: in.Trigger.Description(),
			Text:        in.Trigger.Text,
			Tag:         in.Trigger.Tag,
			Role:        in.Trigger.Role,
		},
		RevealedElements: revealed,
		URLChanged:       in.URLChanged(),
		URLBefore:        in.URLBefore,
		URLAfter:         in.URLAfter,
		PopupAppeared:    in.PopupAppeared,
		PopupInfo:        in.PopupInfo,
		ClickableLinks:   in.ClickableLinks(),
	}
}
