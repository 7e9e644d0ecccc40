package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"blockhost-portal/internal/forms"
)

var internalTemplate = template.Must(template.New("internal").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2933;">
  <h2>New {{.Title}}</h2>
  <p>Submission {{.SubmissionID}}</p>
  <table cellpadding="6" cellspacing="0" border="1" style="border-collapse: collapse;">
    {{- range .Rows}}
    <tr>
      <th align="left" valign="top">{{.Label}}</th>
      <td style="white-space: pre-wrap;">{{.Value}}</td>
    </tr>
    {{- end}}
  </table>
</body>
</html>`))

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2933;">
  <h2>Thanks for applying!</h2>
  {{- if .Founding}}
  <p>We've received your Founding Creator application. Founding spots are limited,
  so every application is read by the team personally.</p>
  <p>If you're shortlisted we'll reach out on Discord or email to schedule a short call.</p>
  {{- else}}
  <p>We've received your application for BlockHost creator hosting.</p>
  <p>Someone from the team will review it and get back to you within a few business days.</p>
  {{- end}}
  <p>The BlockHost team</p>
</body>
</html>`))

type row struct {
	Label string
	Value string
}

type rendered struct {
	Subject string
	HTML    string
	Text    string
}

// presentRows lists submitted fields in form order, skipping empty values.
func presentRows(f forms.FormType, values forms.Values) []row {
	var rows []row
	for _, field := range forms.Fields(f) {
		v, ok := values[field.Name]
		if !ok {
			continue
		}
		var display string
		switch val := v.(type) {
		case bool:
			if !val {
				continue
			}
			display = "Yes"
		case string:
			display = strings.TrimSpace(val)
			if field.Kind == forms.KindChoice {
				display = field.OptionLabel(display)
			}
		case nil:
			continue
		default:
			display = fmt.Sprint(val)
		}
		if display == "" {
			continue
		}
		rows = append(rows, row{Label: field.Label, Value: display})
	}
	return rows
}

func renderInternal(f forms.FormType, values forms.Values, submissionID string) (*rendered, error) {
	rows := presentRows(f, values)

	var html bytes.Buffer
	err := internalTemplate.Execute(&html, struct {
		Title        string
		SubmissionID string
		Rows         []row
	}{f.Title(), submissionID, rows})
	if err != nil {
		return nil, fmt.Errorf("render internal notification: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "New %s (%s)\n\n", f.Title(), submissionID)
	for _, r := range rows {
		fmt.Fprintf(&text, "%s: %s\n", r.Label, r.Value)
	}

	name := strings.TrimSpace(values.String("firstName") + " " + values.String("lastName"))
	return &rendered{
		Subject: fmt.Sprintf("New %s: %s", f.Title(), name),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

func renderConfirmation(f forms.FormType) (*rendered, error) {
	var html bytes.Buffer
	if err := confirmationTemplate.Execute(&html, struct{ Founding bool }{f == forms.Founding}); err != nil {
		return nil, fmt.Errorf("render confirmation: %w", err)
	}

	subject := "We received your BlockHost application"
	text := "Thanks for applying! Someone from the team will review your application and get back to you within a few business days.\n\nThe BlockHost team\n"
	if f == forms.Founding {
		subject = "Your BlockHost Founding Creator application"
		text = "Thanks for applying to be a Founding Creator! Every application is read by the team personally. If you're shortlisted we'll reach out to schedule a short call.\n\nThe BlockHost team\n"
	}
	return &rendered{Subject: subject, HTML: html.String(), Text: text}, nil
}
