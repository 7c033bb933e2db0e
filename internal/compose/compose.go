// Package compose builds the ordered outbound bundles sent at each stage of a
// sales conversation. Builders are pure apart from asset existence checks.
package compose

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/EnrollBot/internal/models"
)

// Composer renders bundles, consulting the media library for optional assets.
type Composer struct {
	assets Assets
}

// New creates a Composer. A nil asset library treats every media reference as missing.
func New(assets Assets) *Composer {
	if assets == nil {
		assets = StaticAssets{}
	}
	return &Composer{assets: assets}
}

// Info is the discovery bundle sent when a program is first matched: greeting,
// personalization, video (falling back to the instructor poster), benefits,
// brochure, the schedule block and the profile prompt.
func (c *Composer) Info(entry models.ProgramEntry, content models.Content, schedule string) models.Bundle {
	var b models.Bundle
	b = b.AddText(content.Greeting)
	b = b.AddText(entry.Personalized)
	switch {
	case entry.Video != "" && c.assets.Exists(entry.Video):
		b = b.AddMedia(models.MediaVideo, entry.Video)
	case entry.Image != "" && c.assets.Exists(entry.Image):
		b = b.AddMedia(models.MediaImage, entry.Image)
	}
	b = b.AddText(entry.Benefits)
	if entry.Brochure != "" && c.assets.Exists(entry.Brochure) {
		b = b.AddMedia(models.MediaDocument, entry.Brochure)
	}
	b = b.AddText(schedule)
	b = b.AddText(content.ProfilePrompt)
	return b
}

// ProfileAnswer is the bundle for a valid profile choice: the configured answer
// for the option, the investment quote and the upsell texts.
func (c *Composer) ProfileAnswer(entry models.ProgramEntry, option int, student bool, content models.Content) models.Bundle {
	var b models.Bundle
	if resp, ok := entry.ProfileResponseFor(option); ok {
		b = b.AddText(resp)
	} else {
		b = b.AddText(msgNoProfileResponse)
	}
	b = b.AddText(Investment(entry, student, content))
	b = b.AddText(content.Plus)
	b = b.AddText(content.CallToAction)
	return b
}

// Investment renders the price quote for the entry's category and segment.
func Investment(entry models.ProgramEntry, student bool, content models.Content) string {
	p := entry.Prices(student)
	list := price(p.List)
	installment := price(p.Installment)
	cash := price(p.Cash)
	deposit := price(p.Deposit)
	inst := content.InstallmentDiscountPct
	cashPct := content.CashDiscountPct

	var b strings.Builder
	if h := strings.TrimSpace(content.Headline); h != "" {
		b.WriteString(h)
		b.WriteString("\n\n")
	}
	if entry.Category() == models.CategoryCourse {
		b.WriteString("Opciones de pago:\n")
		fmt.Fprintf(&b, "1️⃣ *Al Contado* Ahorro máximo😉\n🔥%d%% Dcto > S/ %s ~(Normal S/ %s)~\n\n", cashPct, cash, list)
		fmt.Fprintf(&b, "2️⃣ *En Cuotas sin intereses*\n%d%% Dcto > S/ %s ~(Normal S/ %s)~\n💳 Reserva con S/ %s\n\n", inst, installment, list, deposit)
	} else {
		b.WriteString("Facilidades de pago:\n")
		fmt.Fprintf(&b, "1️⃣ *En Cuotas sin Intereses* 🔥%d%% Dcto > S/ %s ~(Normal S/ %s)~\n💳 Reserva con S/ %s\n\n", inst, installment, list, deposit)
		fmt.Fprintf(&b, "2️⃣ *Al Contado* Ahorro máximo😉\n🔥%d%% Dcto > S/ %s ~(Normal S/ %s)~\n\n", cashPct, cash, list)
	}
	b.WriteString("*La inversión incluye el CERTIFICADO* 📚")
	return b.String()
}

func price(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return PricePlaceholder
	}
	return v
}

// PaymentMenu lists the payment channels.
func (c *Composer) PaymentMenu() models.Bundle {
	return models.Bundle{models.Text(msgPaymentMenu)}
}

// Yape sends the Yape number, the category QR when present and the data checklist.
func (c *Composer) Yape(category models.Category, student bool) models.Bundle {
	b := models.Bundle{models.Text(msgYape)}
	qr := YapeProgramQR
	if category == models.CategoryCourse {
		qr = YapeCourseQR
	}
	if c.assets.Exists(qr) {
		b = b.AddMedia(models.MediaImage, qr)
	}
	return b.AddText(Checklist(student))
}

// Transfer sends the category bank account and the data checklist.
func (c *Composer) Transfer(category models.Category, student bool) models.Bundle {
	text := msgTransferProgram
	if category == models.CategoryCourse {
		text = msgTransferCourse
	}
	return models.Bundle{models.Text(text), models.Text(Checklist(student))}
}

// Checklist is the enrollment data request; students also send their university ID.
func Checklist(student bool) string {
	if student {
		return checklistHead + checklistStudentLine + checklistTail
	}
	return checklistHead + checklistTail
}

// Web sends the payment link and the explainer video, or a notice when the video is missing.
func (c *Composer) Web(link string) models.Bundle {
	b := models.Bundle{models.Text(fmt.Sprintf(msgWebTemplate, strings.TrimSpace(link)))}
	if c.assets.Exists(WebVideo) {
		return b.AddMedia(models.MediaVideo, WebVideo)
	}
	return b.AddText(msgWebVideoMissing)
}

// WebUnavailable is sent when the program has no payment link.
func (c *Composer) WebUnavailable() models.Bundle {
	return models.Bundle{models.Text(msgWebUnavailable)}
}

// WebFollowUp asks whether the web registration was completed.
func (c *Composer) WebFollowUp() models.Bundle {
	return models.Bundle{models.Text(msgWebFollowUp)}
}

// RegistrationConfirmed closes a web sale, followed by the upsell text when configured.
func (c *Composer) RegistrationConfirmed(content models.Content) models.Bundle {
	return models.Bundle{models.Text(msgRegistrationConfirmed)}.AddText(content.Plus)
}

// Handoff announces that an advisor will follow up.
func (c *Composer) Handoff(open bool) models.Bundle {
	if open {
		return models.Bundle{models.Text(msgHandoffOpen)}
	}
	return models.Bundle{models.Text(msgHandoffClosed)}
}

// StaleReference apologizes when the conversation's program left the catalog.
func (c *Composer) StaleReference() models.Bundle {
	return models.Bundle{models.Text(msgStaleReference)}
}

// Reprompt repeats the valid choices for a menu stage.
func (c *Composer) Reprompt(stage models.Stage) models.Bundle {
	switch stage {
	case models.StageAwaitingProfile:
		return models.Bundle{models.Text(msgRepromptProfile)}
	case models.StageAwaitingDecision:
		return models.Bundle{models.Text(msgRepromptDecision)}
	case models.StageAwaitingPaymentMethod:
		return models.Bundle{models.Text(msgRepromptPayment)}
	case models.StageAwaitingWebConfirmation:
		return models.Bundle{models.Text(msgRepromptWeb)}
	}
	return nil
}
