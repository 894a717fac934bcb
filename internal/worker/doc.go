// Package worker contains the background sync worker that drains pending
// cards from the store and delivers them to Anki. Delivery is
// at-least-once: a card stays pending until a delivery attempt reaches a
// definitive outcome, so a crash between delivery and bookkeeping results
// in a repeated attempt rather than a lost card.
package worker
