package domain

// Preference é o registro único por usuário. Ausência equivale a tudo true.
// As flags são independentes.
type Preference struct {
	UserID        string `json:"userId"`
	ReportUpdates bool   `json:"reportUpdates"`
	Comments      bool   `json:"comments"`
	Email         bool   `json:"email"`
}

// StoredPreference é o resultado "talvez ausente" da persistência.
type StoredPreference struct {
	Preference
	Found bool
}

// PreferenceUpdate é parcial: campo nil mantém o valor anterior
// (ou o default true quando ainda não havia registro).
type PreferenceUpdate struct {
	ReportUpdates *bool `json:"reportUpdates,omitempty"`
	Comments      *bool `json:"comments,omitempty"`
	Email         *bool `json:"email,omitempty"`
}

func DefaultPreference(userID string) Preference {
	return Preference{
		UserID:        userID,
		ReportUpdates: true,
		Comments:      true,
		Email:         true,
	}
}

// ResolvePreference é o único ponto onde o default é aplicado.
func ResolvePreference(userID string, stored StoredPreference) Preference {
	if !stored.Found {
		return DefaultPreference(userID)
	}
	p := stored.Preference
	p.UserID = userID
	return p
}

// Apply devolve p com os campos presentes em upd sobrescritos.
func (p Preference) Apply(upd PreferenceUpdate) Preference {
	if upd.ReportUpdates != nil {
		p.ReportUpdates = *upd.ReportUpdates
	}
	if upd.Comments != nil {
		p.Comments = *upd.Comments
	}
	if upd.Email != nil {
		p.Email = *upd.Email
	}
	return p
}

// Allows decide o gating por tipo. Tipos sem flag própria passam.
func (p Preference) Allows(t Type) bool {
	switch t {
	case TypeReportStatus:
		return p.ReportUpdates
	case TypeComment:
		return p.Comments
	default:
		return true
	}
}
