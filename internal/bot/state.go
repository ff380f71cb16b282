package bot

import (
	"sync"

	"rezervacia/internal/models"
	"rezervacia/internal/wizard"
)

// contactStep is the contact field the bot is currently asking for.
type contactStep string

const (
	stepNone      contactStep = "none"
	stepFirstName contactStep = "first_name"
	stepLastName  contactStep = "last_name"
	stepEmail     contactStep = "email"
	stepPhone     contactStep = "phone"
	stepNotes     contactStep = "notes"
	stepConsent   contactStep = "consent"
)

// contactOrder lists the text prompts in the order they are asked.
var contactOrder = []contactStep{stepFirstName, stepLastName, stepEmail, stepPhone, stepNotes, stepConsent}

// fieldKeys maps a step to the ContactForm field name used in validation.
var fieldKeys = map[contactStep]string{
	stepFirstName: "firstName",
	stepLastName:  "lastName",
	stepEmail:     "email",
	stepPhone:     "phone",
	stepNotes:     "notes",
	stepConsent:   "consent",
}

var prompts = map[contactStep]string{
	stepFirstName: "Zadajte svoje meno:",
	stepLastName:  "Zadajte priezvisko:",
	stepEmail:     "Zadajte e-mailovú adresu:",
	stepPhone:     "Zadajte telefónne číslo, napríklad +421900000000:",
	stepNotes:     "Poznámka pre salón (alebo pošlite - ak nemáte):",
}

type contactState struct {
	Step contactStep
	// Reached is the furthest step asked so far.
	Reached contactStep
	Form    wizard.ContactForm
}

func (s contactStep) index() int {
	for i, step := range contactOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// advance moves the dialog to step and remembers how far it got.
func (st *contactState) advance(step contactStep) {
	st.Step = step
	if step.index() > st.Reached.index() {
		st.Reached = step
	}
}

// resume returns the step to continue the dialog at: the first answer that
// is missing or invalid, or the furthest step asked before.
func (st contactState) resume() contactStep {
	if st.Reached.index() < 0 {
		return stepFirstName
	}
	errs := st.Form.Validate()
	for _, step := range contactOrder {
		if step == st.Reached {
			return step
		}
		if _, bad := errs[fieldKeys[step]]; bad {
			return step
		}
	}
	return stepFirstName
}

// seedFromDraft fills empty answers from the contact values the wizard
// already holds, e.g. after a failed submission.
func (st *contactState) seedFromDraft(d models.BookingDraft) {
	if d.FirstName == "" {
		return
	}
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&st.Form.FirstName, d.FirstName)
	fill(&st.Form.LastName, d.LastName)
	fill(&st.Form.Email, d.Email)
	fill(&st.Form.Phone, d.Phone)
	fill(&st.Form.Notes, d.Notes)
	if st.Reached.index() < stepConsent.index() {
		st.Reached = stepConsent
	}
}

// next returns the step after s.
func (s contactStep) next() contactStep {
	for i, step := range contactOrder {
		if step == s && i+1 < len(contactOrder) {
			return contactOrder[i+1]
		}
	}
	return stepConsent
}

// stateStore keeps the partially entered contact form per Telegram user.
type stateStore struct {
	mu sync.Mutex
	m  map[int64]contactState
}

func newStateStore() *stateStore {
	return &stateStore{m: make(map[int64]contactState)}
}

func (s *stateStore) get(userID int64) contactState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[userID]
	if !ok {
		return contactState{Step: stepNone}
	}
	return st
}

func (s *stateStore) set(userID int64, st contactState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = st
}

func (s *stateStore) reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
