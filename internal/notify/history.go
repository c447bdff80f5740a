package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tanefack/community-booking/internal/model"
	"github.com/tanefack/community-booking/internal/repository"
)

// historyLimit caps how many bookings go into one history SMS.
const historyLimit = 5

// HistoryNotifier composes a user's recent booking history and queues
// it as an outbound SMS. Used by the USSD "My Bookings" screen, which
// has no room to render the list inline.
type HistoryNotifier struct {
	bookings  *repository.BookingRepo
	publisher *Publisher
}

func NewHistoryNotifier(bookings *repository.BookingRepo, publisher *Publisher) *HistoryNotifier {
	return &HistoryNotifier{bookings: bookings, publisher: publisher}
}

// SendBookingHistory is fire and forget: failures are logged, never
// surfaced, because the USSD session has already been told the SMS is
// on its way.
func (n *HistoryNotifier) SendBookingHistory(ctx context.Context, u *model.User) {
	bookings, err := n.bookings.ListByUser(ctx, u.ID, historyLimit)
	if err != nil {
		log.Printf("notify: list bookings for user %d: %v", u.ID, err)
		return
	}
	if err := n.publisher.PublishSms(ctx, u.PhoneNumber, historyMessage(bookings)); err != nil {
		log.Printf("notify: queue history sms for user %d: %v", u.ID, err)
	}
}

func historyMessage(bookings []model.Booking) string {
	if len(bookings) == 0 {
		return "You have no bookings yet."
	}
	var b strings.Builder
	b.WriteString("Your recent bookings:\n")
	for _, bk := range bookings {
		fmt.Fprintf(&b, "%s %s %s %s\n", bk.ReferenceCode, bk.BookingDate, bk.Status, formatCents(bk.AmountCents))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCents(cents int64) string {
	return fmt.Sprintf("FCFA %d", cents/100)
}
