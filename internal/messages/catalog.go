// Package messages holds the outbound message texts, parameterized by the
// event configuration so the bot can be reused for a different event without
// touching the conversation logic.
package messages

import (
	"fmt"

	"event-rsvp-bot/internal/config"
)

// Catalog renders every message the bot sends.
type Catalog struct {
	event config.EventConfig
}

func NewCatalog(event config.EventConfig) *Catalog {
	return &Catalog{event: event}
}

func (c *Catalog) Greeting(name string) string {
	return fmt.Sprintf("Hello, %s", name)
}

func (c *Catalog) Invitation() string {
	msg := fmt.Sprintf(
		"🌟 You are Cordially Invited! 🌟\n\n"+
			"We are excited to invite you to our *%s*. Join us for an evening of networking, fine dining, and exclusive experiences.\n\n"+
			"📅 Date: %s - %s\n"+
			"🏨 Location: %s\n"+
			"🕖 Time: %s\n\n"+
			"We look forward to your attendance.",
		c.event.Name, c.event.DateDisplay, c.event.Day, c.event.Location, c.event.Time,
	)
	if c.event.ContactPhone != "" || c.event.ContactEmail != "" {
		msg += "\n\nPlease RSVP on:"
		if c.event.ContactPhone != "" {
			msg += "\n📞 " + c.event.ContactPhone
		}
		if c.event.ContactEmail != "" {
			msg += "\n📧 " + c.event.ContactEmail
		}
	}
	return msg
}

func (c *Catalog) RSVPPrompt() string {
	return "RSVP by selecting one of the options below:\n\n" +
		"✅ Yes, I will attend\n" +
		"❌ No, I can't make it\n\n" +
		"We look forward to your attendance."
}

// RSVPOptions are the selectable choices attached to the RSVP prompt when
// the transport supports option buttons.
func (c *Catalog) RSVPOptions() []string {
	return []string{"Yes, I will attend", "No, I can't make it"}
}

func (c *Catalog) ThankYouAttending(name string) string {
	return fmt.Sprintf(
		"🎉 Thank you *%s*, for confirming your attendance at our %s! 🥂 ✨\n\n"+
			"To ensure you have an enjoyable experience, could you please let us know your preferences?",
		name, c.event.Name,
	)
}

func (c *Catalog) FoodPrompt() string {
	return "What are your food preferences?\n\n" +
		"• Non-vegetarian food\n" +
		"• Vegetarian food"
}

func (c *Catalog) DrinkPrompt() string {
	return "What are your drink preferences? Would you like\n\n" +
		"• Non-alcoholic options 🥤\n" +
		"• Alcoholic options 🍷"
}

func (c *Catalog) RegistrationComplete() string {
	return fmt.Sprintf(
		"🎉 You are now successfully registered! 🎉\n\n"+
			"📍 Event Location: %s\n\n"+
			"📅 Date: %s\n\n"+
			"🕖 Time: %s\n\n"+
			"We look forward to warmly welcoming you at the event location.\n\n"+
			"Thank you for sharing your preferences! 🙏 ✨",
		c.event.Location, c.event.DateDisplay, c.event.Time,
	)
}

func (c *Catalog) DeclineResponse() string {
	return "Thank you for your response. We're sorry you can't make it. We hope to see you at our future events! 🙏"
}

func (c *Catalog) AlreadyRegistered() string {
	return "You are already registered for the event! We look forward to seeing you. If you need to make changes, please contact us directly."
}

func (c *Catalog) AlreadyDeclined() string {
	return "You have already declined the invitation. If you've changed your mind, please contact us directly."
}

// Reminder renders the day-counted reminder text. The framing is a pure
// function of the number of days left.
func (c *Catalog) Reminder(daysLeft int) string {
	switch daysLeft {
	case 0:
		return fmt.Sprintf(
			"🎊 *Today is the day!* 🎊\n\n"+
				"Your %s is happening today at %s!\n\n"+
				"📍 %s\n"+
				"🕖 Time: %s\n\n"+
				"We can't wait to see you! 🌟",
			c.event.Name, c.event.Time, c.event.Location, c.event.Time,
		)
	case 1:
		return fmt.Sprintf(
			"⏰ *Tomorrow's the big day!*\n\n"+
				"We are so excited to have you join us on *%s at %s*\n\n"+
				"We can't wait to see you!",
			c.event.DateDisplay, c.event.Time,
		)
	default:
		return fmt.Sprintf(
			"📅 *Reminder: %d days to go!*\n\n"+
				"Join us at the *%s* on *%s* for an unforgettable evening.\n\n"+
				"📍 %s\n"+
				"🕖 %s\n\n"+
				"See you there! ✨",
			daysLeft, c.event.Name, c.event.DateDisplay, c.event.Location, c.event.Time,
		)
	}
}
