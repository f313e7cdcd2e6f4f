// Package templates renders the candidate-facing emails.
package templates

import "fmt"

type Message struct {
	Subject string
	Body    string
}

func InterviewInvitation(candidateName string, round int) Message {
	return Message{
		Subject: fmt.Sprintf("Interview Invitation - Round %d", round),
		Body: fmt.Sprintf("Dear %s,\n\n"+
			"We are pleased to invite you for Round %d of the interview process.\n\n"+
			"Please find the interview details below:\n"+
			"- Round: %d\n"+
			"- Date: [To be scheduled]\n"+
			"- Duration: [To be confirmed]\n\n"+
			"We will contact you shortly to schedule the exact date and time.\n\n"+
			"Best regards,\nHR Team", candidateName, round, round),
	}
}

// RejectionNotice names company when given, "us" otherwise.
func RejectionNotice(candidateName, company string) Message {
	at := "with us"
	if company != "" {
		at = "at " + company
	}
	return Message{
		Subject: "Thank you for your interest",
		Body: fmt.Sprintf("Dear %s,\n\n"+
			"Thank you for applying %s.\n"+
			"After careful consideration, we regret to inform you that you have not been selected for the position.\n\n"+
			"We appreciate your interest and encourage you to apply for future opportunities.\n\n"+
			"Best regards,\nHR Team", candidateName, at),
	}
}

func SelectionNotice(candidateName string) Message {
	return Message{
		Subject: "Congratulations! You're Selected",
		Body: fmt.Sprintf("Dear %s,\n\n"+
			"Congratulations! 🎉\n\n"+
			"We are pleased to inform you that you have been selected for the position at our company.\n"+
			"Our HR team will be in touch with you shortly to discuss the next steps in the hiring process.\n\n"+
			"We look forward to working with you!\n\n"+
			"Best regards,\nHR Team", candidateName),
	}
}
