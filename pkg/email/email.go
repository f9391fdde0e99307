package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"time"
)

type EmailService struct {
	apiKey    string
	from      string
	templates *template.Template
}

type EmailData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
}

// Template data structures
type WelcomeEmailData struct {
	Name string
}

type SubscriptionEmailData struct {
	Name         string
	StrategyName string
	DurationDays float64
	Price        float64
	Currency     string
	ExpiresAt    time.Time
	IsRenewal    bool
}

type SubscriptionExpiryWarningData struct {
	Name         string
	StrategyName string
	DaysLeft     int
	ExpiryDate   time.Time
}

type PaymentReceivedData struct {
	Name         string
	StrategyName string
	Amount       float64
	Currency     string
}

type CashoutProcessedData struct {
	OwnerName   string
	Amount      float64
	Currency    string
	Destination string
	PayoutID    string
}

type PasswordResetData struct {
	ResetLink string
}

func NewEmailService(apiKey string) (*EmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("error loading email templates: %v", err)
	}

	return &EmailService{
		apiKey:    apiKey,
		from:      "CoachPage <noreply@coachpage.io>",
		templates: templates,
	}, nil
}

func (s *EmailService) sendTemplateEmail(to, subject, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %v", err)
	}

	emailData := EmailData{
		From:    s.from,
		To:      to,
		Subject: subject,
		Html:    body.String(),
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("error marshaling email data: %v", err)
	}

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("Resend API error: Status: %d, Body: %s", resp.StatusCode, string(respBody))
		return fmt.Errorf("resend API error: %s", string(respBody))
	}

	return nil
}

func (s *EmailService) SendWelcomeEmail(email, name string) error {
	data := WelcomeEmailData{
		Name: name,
	}
	return s.sendTemplateEmail(email, "Welcome to CoachPage! 🎉", "welcome.html", data)
}

func (s *EmailService) SendSubscriptionStartedEmail(
	email string,
	name string,
	strategyName string,
	durationDays float64,
	price float64,
	currency string,
	expiresAt time.Time,
	isRenewal bool,
) error {
	data := SubscriptionEmailData{
		Name:         name,
		StrategyName: strategyName,
		DurationDays: durationDays,
		Price:        price,
		Currency:     currency,
		ExpiresAt:    expiresAt,
		IsRenewal:    isRenewal,
	}

	subject := "Your Strategy Subscription Is Active! 🎉"
	if isRenewal {
		subject = "Your Subscription Has Been Renewed 🔄"
	}

	return s.sendTemplateEmail(email, subject, "subscription_started.html", data)
}

func (s *EmailService) SendSubscriptionExpiryWarning(
	email, name, strategyName string,
	expiryDate time.Time,
	daysLeft int,
) error {
	data := SubscriptionExpiryWarningData{
		Name:         name,
		StrategyName: strategyName,
		DaysLeft:     daysLeft,
		ExpiryDate:   expiryDate,
	}
	return s.sendTemplateEmail(
		email,
		fmt.Sprintf("Your Subscription Expires in %d Days ⚠️", daysLeft),
		"subscription_expiry_warning.html",
		data,
	)
}

func (s *EmailService) SendPaymentReceivedEmail(email, name, strategyName string, amount float64, currency string) error {
	data := PaymentReceivedData{
		Name:         name,
		StrategyName: strategyName,
		Amount:       amount,
		Currency:     currency,
	}
	return s.sendTemplateEmail(email, "Payment Received ✅", "payment_received.html", data)
}

func (s *EmailService) SendCashoutProcessedEmail(email, ownerName string, amount float64, currency, destination, payoutID string) error {
	data := CashoutProcessedData{
		OwnerName:   ownerName,
		Amount:      amount,
		Currency:    currency,
		Destination: destination,
		PayoutID:    payoutID,
	}
	return s.sendTemplateEmail(email, "Your Cashout Has Been Processed 💸", "cashout_processed.html", data)
}

func (s *EmailService) SendPasswordResetEmail(email, resetToken string) error {
	data := PasswordResetData{
		ResetLink: fmt.Sprintf("https://coachpage.io/reset-password?token=%s", resetToken),
	}
	return s.sendTemplateEmail(email, "Reset Your Password 🔒", "password_reset.html", data)
}
