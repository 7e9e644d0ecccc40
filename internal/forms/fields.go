package forms

import "blockhost-portal/internal/common/validation"

type Kind int

const (
	KindText Kind = iota
	KindTextArea
	KindEmail
	KindURL
	KindChoice
	KindCheckbox
)

type Option struct {
	Value string
	Label string
}

type Field struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool
	Min, Max int
	Options  []Option
	// MustAgree marks checkboxes that have to be ticked.
	MustAgree bool
	// AnalyticsKey is set on categorical fields safe to report.
	AnalyticsKey string
	Message      string
}

func (f Field) property() validation.Property {
	p := validation.Property{Type: "string", Description: f.Label, Message: f.Message}
	switch f.Kind {
	case KindCheckbox:
		p.Type = "boolean"
		p.MustBeTrue = f.MustAgree
	case KindEmail:
		p.Format = validation.FormatEmail
	case KindURL:
		p.Format = validation.FormatURI
	case KindChoice:
		for _, o := range f.Options {
			p.Enum = append(p.Enum, o.Value)
		}
	}
	if f.Min > 0 {
		p.MinLength = validation.IntPtr(f.Min)
	}
	if f.Max > 0 {
		p.MaxLength = validation.IntPtr(f.Max)
	}
	return p
}

// OptionLabel maps a stored choice value back to its display label.
func (f Field) OptionLabel(value string) string {
	for _, o := range f.Options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

var (
	creatorTypes = []Option{
		{"youtube", "YouTube"},
		{"twitch", "Twitch"},
		{"tiktok", "TikTok"},
		{"multi-platform", "Multi-platform"},
		{"other", "Other"},
	}
	contactMethods = []Option{
		{"email", "Email"},
		{"discord", "Discord"},
	}
	budgetRanges = []Option{
		{"under-15", "Under $15/mo"},
		{"15-30", "$15 to $30/mo"},
		{"30-60", "$30 to $60/mo"},
		{"60-plus", "$60+/mo"},
	}
	timelines = []Option{
		{"asap", "As soon as possible"},
		{"1-month", "Within a month"},
		{"1-3-months", "1 to 3 months"},
		{"exploring", "Just exploring"},
	}
	timezones = []Option{
		{"NA-East", "North America (East)"},
		{"NA-West", "North America (West)"},
		{"EU", "Europe"},
		{"Asia", "Asia"},
		{"Oceania", "Oceania"},
		{"Other", "Other"},
	}
	audienceSizes = []Option{
		{"under-1k", "Under 1K"},
		{"1k-10k", "1K to 10K"},
		{"10k-100k", "10K to 100K"},
		{"100k-1m", "100K to 1M"},
		{"1m+", "1M+"},
	}
	uploadFrequencies = []Option{
		{"daily", "Daily"},
		{"weekly", "Weekly"},
		{"biweekly", "Every two weeks"},
		{"monthly", "Monthly"},
		{"irregular", "Irregular"},
	}
	collaboratorOptions = []Option{
		{"solo", "Just me"},
		{"small-team", "A small team (2-5)"},
		{"large-group", "A larger group (6+)"},
	}
	feedbackStyles = []Option{
		{"async-written", "Async written notes"},
		{"video-calls", "Video calls"},
		{"discord-chat", "Discord chat"},
		{"mixed", "A mix"},
	}
	availability = []Option{
		{"yes", "Yes"},
		{"maybe", "Maybe"},
		{"no", "No"},
	}
)

var standardFields = []Field{
	{Name: "firstName", Label: "First name", Kind: KindText, Required: true, Min: 1, Max: 50},
	{Name: "lastName", Label: "Last name", Kind: KindText, Required: true, Min: 1, Max: 50},
	{Name: "email", Label: "Email", Kind: KindEmail, Required: true, Max: 254},
	{Name: "discordUsername", Label: "Discord username", Kind: KindText, Max: 50},
	{Name: "preferredContact", Label: "Preferred contact", Kind: KindChoice, Options: contactMethods, AnalyticsKey: "preferred_contact"},
	{Name: "channelUrl", Label: "Channel URL", Kind: KindURL, Max: 500},
	{Name: "subscriberCount", Label: "Subscriber count", Kind: KindText, Max: 50},
	{Name: "creatorType", Label: "Creator type", Kind: KindChoice, Required: true, Options: creatorTypes, AnalyticsKey: "creator_type",
		Message: "Please select your creator type"},
	{Name: "currentSetup", Label: "Current setup", Kind: KindTextArea, Required: true, Min: 10, Max: 1000},
	{Name: "useCase", Label: "What will you use the server for?", Kind: KindTextArea, Required: true, Min: 20, Max: 2000},
	{Name: "budgetRange", Label: "Budget", Kind: KindChoice, Options: budgetRanges, AnalyticsKey: "budget_range"},
	{Name: "timeline", Label: "Timeline", Kind: KindChoice, Options: timelines, AnalyticsKey: "timeline"},
	{Name: "referral", Label: "How did you hear about us?", Kind: KindText, Max: 200},
}

var foundingFields = buildFoundingFields()

func buildFoundingFields() []Field {
	fields := make([]Field, 0, len(standardFields)+16)
	for _, f := range standardFields {
		switch f.Name {
		case "discordUsername":
			f.Required, f.Min = true, 2
		case "channelUrl":
			f.Required = true
		}
		fields = append(fields, f)
	}
	return append(fields,
		Field{Name: "timezone", Label: "Timezone", Kind: KindChoice, Required: true, Options: timezones, AnalyticsKey: "timezone"},
		Field{Name: "contentDescription", Label: "Describe your content", Kind: KindTextArea, Required: true, Min: 50, Max: 2000},
		Field{Name: "audienceSize", Label: "Audience size", Kind: KindChoice, Required: true, Options: audienceSizes, AnalyticsKey: "audience_size"},
		Field{Name: "uploadFrequency", Label: "Upload frequency", Kind: KindChoice, Required: true, Options: uploadFrequencies, AnalyticsKey: "upload_frequency"},
		Field{Name: "worldDescription", Label: "Describe your world", Kind: KindTextArea, Required: true, Min: 30, Max: 1500},
		Field{Name: "currentPainPoints", Label: "Current pain points", Kind: KindTextArea, Required: true, Min: 30, Max: 1500},
		Field{Name: "collaborators", Label: "Who builds with you?", Kind: KindChoice, Required: true, Options: collaboratorOptions, AnalyticsKey: "collaborators"},
		Field{Name: "whyFounder", Label: "Why do you want to be a founding creator?", Kind: KindTextArea, Required: true, Min: 50, Max: 2000},
		Field{Name: "feedbackStyle", Label: "Feedback style", Kind: KindChoice, Required: true, Options: feedbackStyles, AnalyticsKey: "feedback_style"},
		Field{Name: "availabilityCall", Label: "Available for a call?", Kind: KindChoice, Required: true, Options: availability, AnalyticsKey: "availability_call"},
		Field{Name: "agreeCommitment", Label: "I commit to actively using the server during the founding period", Kind: KindCheckbox, Required: true, MustAgree: true,
			Message: "You must agree to the founding commitment"},
		Field{Name: "agreeFeedback", Label: "I agree to share regular feedback", Kind: KindCheckbox, Required: true, MustAgree: true,
			Message: "You must agree to provide feedback"},
		Field{Name: "agreeTestimonial", Label: "I'm open to giving a testimonial", Kind: KindCheckbox},
		Field{Name: "additionalNotes", Label: "Anything else?", Kind: KindTextArea, Max: 1000},
	)
}
