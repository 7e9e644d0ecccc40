// Package formstest provides valid application payloads for tests.
package formstest

import (
	"strings"

	"blockhost-portal/internal/forms"
)

// Standard returns a standard application that passes validation.
func Standard() forms.Values {
	return forms.Values{
		"firstName":        "Alex",
		"lastName":         "Rivera",
		"email":            "alex@example.com",
		"discordUsername":  "",
		"preferredContact": "email",
		"channelUrl":       "",
		"subscriberCount":  "",
		"creatorType":      "youtube",
		"currentSetup":     "I run a local server on my PC",
		"useCase":          "Long-form survival series, worried about losing worlds to mod updates",
		"budgetRange":      "",
		"timeline":         "",
		"referral":         "",
	}
}

// Founding returns a founding application that passes validation.
func Founding() forms.Values {
	v := Standard()
	v["discordUsername"] = "alexbuilds"
	v["channelUrl"] = "https://youtube.com/@alexbuilds"
	v["timezone"] = "EU"
	v["contentDescription"] = strings.Repeat("Weekly hardcore survival episodes. ", 2)
	v["audienceSize"] = "10k-100k"
	v["uploadFrequency"] = "weekly"
	v["worldDescription"] = "A five year old world with a sprawling rail network."
	v["currentPainPoints"] = "Lag spikes whenever the farms load at the same time."
	v["collaborators"] = "small-team"
	v["whyFounder"] = "I want a host that grows with the series and listens to builders like us."
	v["feedbackStyle"] = "discord-chat"
	v["availabilityCall"] = "maybe"
	v["agreeCommitment"] = true
	v["agreeFeedback"] = true
	v["agreeTestimonial"] = false
	v["additionalNotes"] = ""
	return v
}
