package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"familymeds/internal/models"
)

// AlertService sends refill reminder emails via Amazon SES
type AlertService struct {
	client     *sesv2.Client
	fromEmail  string
	fromName   string
	alertEmail string
	enabled    bool
	debug      bool
}

// NewAlertService creates a new alert service. When fromEmail is empty the
// service is created disabled and every send becomes a logged no-op.
func NewAlertService(awsRegion, fromEmail, fromName, alertEmail string, debug bool) (*AlertService, error) {
	if fromEmail == "" {
		log.Println("Alert service disabled: SES_FROM_EMAIL not configured")
		if debug {
			log.Println("[DEBUG] Alert service will skip sending all emails")
		}
		return &AlertService{
			enabled: false,
			debug:   debug,
		}, nil
	}

	if debug {
		log.Printf("[DEBUG] Initializing alert service with AWS SES")
		log.Printf("[DEBUG] AWS Region: %s", awsRegion)
		log.Printf("[DEBUG] From Email: %s", fromEmail)
		log.Printf("[DEBUG] Alert Email: %s", alertEmail)
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(awsRegion),
	)
	if err != nil {
		if debug {
			log.Printf("[DEBUG] Failed to load AWS config: %v", err)
		}
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sesv2.NewFromConfig(cfg)

	log.Printf("Alert service enabled: from=%s, region=%s", fromEmail, awsRegion)

	return &AlertService{
		client:     client,
		fromEmail:  fromEmail,
		fromName:   fromName,
		alertEmail: alertEmail,
		enabled:    true,
		debug:      debug,
	}, nil
}

// IsEnabled returns whether the alert service is enabled
func (s *AlertService) IsEnabled() bool {
	return s.enabled
}

// SendLowStockDigest emails a digest of the given medications, which callers
// pre-filter to low and critical stock. A nil or empty slice is a no-op.
func (s *AlertService) SendLowStockDigest(ctx context.Context, medications []models.Medication) error {
	if len(medications) == 0 {
		if s.debug {
			log.Println("[DEBUG] No low stock medications, skipping digest")
		}
		return nil
	}

	if !s.enabled {
		log.Printf("Skipping email send (service disabled): low stock digest with %d medications", len(medications))
		return nil
	}
	if s.alertEmail == "" {
		log.Println("Skipping email send: ALERT_EMAIL not configured")
		return nil
	}

	subject := fmt.Sprintf("FamilyMeds: %d medication(s) running low", len(medications))

	var htmlRows strings.Builder
	var textRows strings.Builder
	for _, med := range medications {
		level := string(med.StockLevel)
		reminder := med.RefillReminder
		if reminder == "" {
			reminder = "-"
		}
		fmt.Fprintf(&htmlRows, "<tr><td>%s</td><td>%s</td><td>%d of %d</td><td>%d days</td><td>%s</td></tr>\n",
			med.Name, level, med.CurrentCount, med.TotalCount, med.DaysLeft, reminder)
		fmt.Fprintf(&textRows, "- %s (%s): %d of %d left, %d days of supply, refill: %s\n",
			med.Name, level, med.CurrentCount, med.TotalCount, med.DaysLeft, reminder)
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #4a90e2; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		table { width: 100%%; border-collapse: collapse; }
		th, td { text-align: left; padding: 8px; border-bottom: 1px solid #ddd; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>Medication Stock Alert</h1>
		</div>
		<div class="content">
			<p>The following medications are running low:</p>
			<table>
				<tr><th>Medication</th><th>Stock</th><th>Remaining</th><th>Supply</th><th>Refill</th></tr>
				%s
			</table>
		</div>
		<div class="footer">
			<p>This is an automated email from FamilyMeds. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, htmlRows.String())

	textBody := fmt.Sprintf(`The following medications are running low:

%s
---
This is an automated email from FamilyMeds. Please do not reply.
`, textRows.String())

	if s.debug {
		log.Printf("[DEBUG] Sending low stock digest: subject=%s, to=%s", subject, s.alertEmail)
	}

	return s.sendEmail(ctx, s.alertEmail, subject, htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *AlertService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		if s.debug {
			log.Printf("[DEBUG] SES SendEmail failed: %v", err)
		}
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	if s.debug && result.MessageId != nil {
		log.Printf("[DEBUG] Message ID: %s", *result.MessageId)
	}

	log.Printf("Email sent successfully: to=%s, subject=%s", toEmail, subject)
	return nil
}
