package domain

// ChatRequest is one inbound chat turn.
type ChatRequest struct {
	SessionID   string      `json:"sessionId"`
	ProductID   string      `json:"productId"`
	Message     string      `json:"message"`
	CurrentStep StepTag     `json:"currentStep,omitempty"`
	OrderData   *OrderDraft `json:"orderData,omitempty"`
	ForceAI     bool        `json:"forceAI,omitempty"`

	// Channel names the transport the turn arrived on. It is set server-side.
	Channel string `json:"-"`
}

// Actions are side effects the chat surface should perform.
type Actions struct {
	ShowCart         bool   `json:"showCart,omitempty"`
	ShowPayment      bool   `json:"showPayment,omitempty"`
	TriggerUpsell    bool   `json:"triggerUpsell,omitempty"`
	ShowTestimonials bool   `json:"showTestimonials,omitempty"`
	RedirectWhatsApp string `json:"redirectWhatsApp,omitempty"`
}

// Empty reports whether no action is set.
func (a *Actions) Empty() bool {
	return a == nil || *a == Actions{}
}

// StepPayload is the step-specific data attached to a response. Each
// implementation belongs to exactly one step.
type StepPayload interface {
	PayloadStep() StepTag
}

// QuantityPayload accompanies the quantity prompt.
type QuantityPayload struct {
	UnitPrice int64            `json:"unitPrice"`
	Options   []QuantityOption `json:"options"`
}

// QuantityOption is one quantity button with its price.
type QuantityOption struct {
	Label    string `json:"label"`
	Quantity int    `json:"quantity"`
	Total    int64  `json:"total"`
	Discount int64  `json:"discount"`
}

func (QuantityPayload) PayloadStep() StepTag { return StepExpressQuantity }

// AddressPayload accompanies the address prompt.
type AddressPayload struct {
	KnownAddress string `json:"knownAddress,omitempty"`
	DefaultCity  string `json:"defaultCity"`
}

func (AddressPayload) PayloadStep() StepTag { return StepExpressAddress }

// PaymentPayload describes the payment hand-off decided by the engine.
type PaymentPayload struct {
	Provider           PaymentProvider `json:"provider,omitempty"`
	Amount             int64           `json:"amount"`
	Currency           string          `json:"currency"`
	SettlementAmount   int64           `json:"settlementAmount,omitempty"`
	SettlementCurrency string          `json:"settlementCurrency,omitempty"`
	MountWidget        bool            `json:"mountWidget"`
}

func (PaymentPayload) PayloadStep() StepTag { return StepExpressPayment }

// UpsellPayload carries recommendations shown after an order or on stock-out.
type UpsellPayload struct {
	Recommendations []ProductRecommendation `json:"recommendations"`
}

func (UpsellPayload) PayloadStep() StepTag { return StepUpsellSelection }

// TestimonialsPayload carries reviews shown to reassure the visitor.
type TestimonialsPayload struct {
	Testimonials []Testimonial `json:"testimonials"`
}

func (TestimonialsPayload) PayloadStep() StepTag { return StepQuestionMode }

// Metadata is the structured side channel of a response.
type Metadata struct {
	OrderData *OrderDraft     `json:"orderData,omitempty"`
	Payload   StepPayload     `json:"payload,omitempty"`
	Flags     map[string]bool `json:"flags,omitempty"`
	Source    string          `json:"source,omitempty"`
}

// Response sources.
const (
	SourceRules    = "rules"
	SourceLLM      = "llm"
	SourceFallback = "fallback"
	SourceRecovery = "recovery"
)

// ChatResponse is one outbound chat turn. Choices is never nil.
type ChatResponse struct {
	Message  string    `json:"message"`
	Choices  []string  `json:"choices"`
	NextStep StepTag   `json:"nextStep"`
	Actions  *Actions  `json:"actions,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// NewResponse builds a response with a non-nil choice slice.
func NewResponse(message string, next StepTag, choices ...string) ChatResponse {
	if choices == nil {
		choices = []string{}
	}
	return ChatResponse{Message: message, Choices: choices, NextStep: next}
}

// Flag sets a metadata flag.
func (r *ChatResponse) Flag(name string, v bool) {
	r.meta()
	if r.Metadata.Flags == nil {
		r.Metadata.Flags = make(map[string]bool)
	}
	r.Metadata.Flags[name] = v
}

// WithPayload attaches a step payload.
func (r *ChatResponse) WithPayload(p StepPayload) {
	r.meta()
	r.Metadata.Payload = p
}

// WithOrder attaches a copy of the draft.
func (r *ChatResponse) WithOrder(d *OrderDraft) {
	if d == nil {
		return
	}
	r.meta()
	r.Metadata.OrderData = d.Clone()
}

// WithSource tags where the text came from.
func (r *ChatResponse) WithSource(src string) {
	r.meta()
	r.Metadata.Source = src
}

// Act returns the actions, creating them if needed.
func (r *ChatResponse) Act() *Actions {
	if r.Actions == nil {
		r.Actions = &Actions{}
	}
	return r.Actions
}

func (r *ChatResponse) meta() {
	if r.Metadata == nil {
		r.Metadata = &Metadata{}
	}
}

// Normalize guarantees the envelope invariants before it leaves the engine.
func (r *ChatResponse) Normalize() {
	if r.Choices == nil {
		r.Choices = []string{}
	}
	if r.Actions.Empty() {
		r.Actions = nil
	}
}
