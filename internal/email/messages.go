package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"
)

// Service renders workflow emails and hands them to a Sender.
type Service struct {
	sender Sender
}

func NewService(sender Sender) *Service {
	return &Service{sender: sender}
}

func (s *Service) IsConfigured() bool {
	return s != nil && s.sender != nil && s.sender.IsConfigured()
}

type resultStyle struct {
	Color   string
	Message template.HTML
}

// ResultStyle returns the accent colour and message for an evaluation
// result. Unknown results get a neutral grey.
func ResultStyle(result string) (string, template.HTML) {
	switch result {
	case "Naciente":
		return "#ff9f43", "Tu evaluación se encuentra en la etapa <strong>Naciente</strong>. ¡Sigue esforzándote, vas por buen camino y tienes potencial de crecimiento!"
	case "Creciente":
		return "#1793D1", "Tu resultado es <strong>Creciente</strong>. ¡Estás avanzando de forma consistente, felicidades! Mantén el ritmo para alcanzar la excelencia."
	case "Inspiradora":
		return "#27ae60", "Tu evaluación fue <strong>Inspiradora</strong>. ¡Increíble trabajo! Tu desempeño es ejemplar y superó las expectativas."
	default:
		return "#7f8c8d", template.HTML("Tu resultado de evaluación es: <strong>" + template.HTMLEscapeString(result) + "</strong>.")
	}
}

type evaluationData struct {
	UserName string
	Result   string
	Style    resultStyle
	Year     int
}

func (s *Service) SendEvaluationResult(ctx context.Context, to, userName, result string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	color, message := ResultStyle(result)
	html, err := render(evaluationTemplate, evaluationData{
		UserName: userName,
		Result:   result,
		Style:    resultStyle{Color: color, Message: message},
		Year:     time.Now().Year(),
	})
	if err != nil {
		return fmt.Errorf("render evaluation template: %w", err)
	}
	subject := "Resultado de tu Evaluación: " + result
	return s.sender.SendHTML(ctx, Recipient{Email: to, Name: userName}, subject, html)
}

type editApprovedData struct {
	UserName       string
	ExperienceName string
	ExpiresAt      string
}

func (s *Service) SendEditApproved(ctx context.Context, to, userName, experienceName string, expiresAt time.Time) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	html, err := render(editApprovedTemplate, editApprovedData{
		UserName:       userName,
		ExperienceName: experienceName,
		ExpiresAt:      expiresAt.Format("2006-01-02 15:04 MST"),
	})
	if err != nil {
		return fmt.Errorf("render edit approved template: %w", err)
	}
	return s.sender.SendHTML(ctx, Recipient{Email: to, Name: userName}, "Edición aprobada: "+experienceName, html)
}

var (
	evaluationTemplate   = template.Must(template.New("evaluation").Parse(evaluationHTML))
	editApprovedTemplate = template.Must(template.New("edit-approved").Parse(editApprovedHTML))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const evaluationHTML = `<div style="background-color:#F9FAFB; padding:40px 0; font-family:Arial, sans-serif; text-align:center;">
  <table role="presentation" style="width:600px; max-width:100%; margin:0 auto; background-color:#ffffff; border-radius:12px; overflow:hidden;" cellspacing="0" cellpadding="0">
    <tr>
      <td style="padding:20px 30px; background-color:{{.Style.Color}}; color:white;">
        <h1 style="margin:0; font-size:26px;">Resultado de Evaluación</h1>
        <p style="margin:5px 0 0; font-size:14px;">Experiencias Significativas</p>
      </td>
    </tr>
    <tr>
      <td style="padding:40px;">
        <h2 style="color:#1F2937; font-size:22px; margin-top:0;">Hola {{.UserName}},</h2>
        <p style="font-size:16px; color:#4B5563;">Nos complace compartir contigo el resultado oficial de tu más reciente evaluación.</p>
        <div style="margin:30px auto; max-width:80%; background:{{.Style.Color}}; color:white; padding:20px; border-radius:12px; font-size:24px; font-weight:bold;">{{.Result}}</div>
        <p style="font-size:16px; color:#4B5563;">{{.Style.Message}}</p>
        <p style="font-size:13px; color:#777;">Este mensaje ha sido generado automáticamente por el Sistema de Evaluación. No respondas a este correo.</p>
      </td>
    </tr>
    <tr>
      <td style="padding:15px 40px; background-color:#E5E7EB;">
        <p style="font-size:12px; color:#6B7280; margin:0;">&copy; {{.Year}} Sistema de Evaluación de Experiencias Significativas</p>
      </td>
    </tr>
  </table>
</div>`

const editApprovedHTML = `<div style="font-family:Arial, sans-serif; max-width:600px; margin:0 auto; padding:20px; color:#1F2937;">
  <h1 style="color:#0F6799;">Gestión de Experiencias Significativas</h1>
  <p>Hola {{.UserName}},</p>
  <p>Tu solicitud para editar la experiencia <strong>{{.ExperienceName}}</strong> fue aprobada.</p>
  <p>Puedes realizar cambios hasta <strong>{{.ExpiresAt}}</strong>. Después de esa hora el permiso vence y no se puede solicitar de nuevo.</p>
</div>`
