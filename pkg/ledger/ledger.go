// Package ledger imports bank transaction feeds into the local store,
// exactly once per logical transaction.
package ledger

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ynai/ynai/pkg/bank"
	"github.com/ynai/ynai/pkg/store"
)

// The destination budgeting system caps import ids at 36 characters.
const importIDMaxLen = 36

const dateLayout = "2006-01-02"

// Feed is the bank-gateway surface the ingester needs.
type Feed interface {
	Transactions(accountID string) ([]bank.FeedTransaction, error)
}

// Ingester writes feed records into the ledger as pending rows.
type Ingester struct {
	store  *store.Store
	feed   Feed
	logger *log.Logger
	now    func() time.Time
}

func New(st *store.Store, feed Feed, logger *log.Logger) *Ingester {
	return &Ingester{store: st, feed: feed, logger: logger, now: time.Now}
}

// IngestAll pulls and ingests the feed of every registered account,
// sequentially. A bad feed response aborts the whole run; it is not safe
// to partially ingest a malformed feed.
func (g *Ingester) IngestAll() (int, error) {
	accounts, err := g.store.ListAccounts()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, account := range accounts {
		feed, err := g.feed.Transactions(account.ID)
		if err != nil {
			return total, err
		}
		n, err := g.Ingest(account.ID, feed)
		total += n
		if err != nil {
			return total, err
		}
		g.logger.Info("ingested account", "account", account.ID, "inserted", n)
	}
	return total, nil
}

// Ingest writes one account's feed into the ledger and reports how many
// rows were inserted.
//
// The watermark is the max booking date across the whole ledger, not per
// account: records before it are assumed already ingested and skipped,
// records on or after it are re-derived and re-offered to the store, whose
// insert-if-absent primary key handles the duplicates. Re-scanning the
// boundary day catches late-arriving same-day transactions the source
// reports on a later poll.
func (g *Ingester) Ingest(accountID string, feed []bank.FeedTransaction) (int, error) {
	latest, haveWatermark, err := g.store.MaxBookingDate()
	if err != nil {
		return 0, err
	}
	today := g.now().Format(dateLayout)

	inserted := 0
	for _, record := range feed {
		if haveWatermark && record.BookingDate < latest {
			continue
		}
		row, err := deriveRow(accountID, record, today)
		if err != nil {
			return inserted, err
		}
		ok, err := g.store.InsertTransaction(row)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

// deriveRow computes every field of the ledger row before anything is
// written, so a malformed record never leaves a partial row behind.
func deriveRow(accountID string, record bank.FeedTransaction, today string) (store.Transaction, error) {
	amount, err := strconv.ParseFloat(record.TransactionAmount.Amount, 64)
	if err != nil {
		return store.Transaction{}, fmt.Errorf("bad amount %q in transaction %q: %w",
			record.TransactionAmount.Amount, record.TransactionID, err)
	}

	// Some cleared transactions, seemingly ones between own accounts,
	// come without a value date.
	valueDate := record.ValueDate
	if valueDate == "" {
		valueDate = record.BookingDate
	}

	// The destination rejects future-dated transactions; dates compare
	// lexicographically in this layout.
	bookingDate := record.BookingDate
	if bookingDate > today {
		bookingDate = today
	}

	var balance float64
	var balanceCurrency string
	if record.BalanceAfterTransaction != nil {
		balance, err = strconv.ParseFloat(record.BalanceAfterTransaction.BalanceAmount.Amount, 64)
		if err != nil {
			return store.Transaction{}, fmt.Errorf("bad balance in transaction %q: %w",
				record.TransactionID, err)
		}
		balanceCurrency = record.BalanceAfterTransaction.BalanceAmount.Currency
	}

	original, err := json.Marshal(record)
	if err != nil {
		return store.Transaction{}, fmt.Errorf("encode transaction %q: %w", record.TransactionID, err)
	}

	return store.Transaction{
		ID:              record.TransactionID,
		AccountID:       accountID,
		State:           store.StatePending,
		BookingDate:     bookingDate,
		Amount:          amount,
		Currency:        record.TransactionAmount.Currency,
		Description:     description(record),
		ValueDate:       &valueDate,
		Balance:         balance,
		BalanceCurrency: balanceCurrency,
		ImportID:        ImportID(record.BookingDate, record.TransactionID),
		OriginalData:    string(original),
	}, nil
}

// description prefers the first line of the unstructured remittance
// information; not every bank fills it in, so the additional-information
// field is the fallback.
func description(record bank.FeedTransaction) string {
	if record.RemittanceInformationUnstructured != "" {
		line, _, _ := strings.Cut(record.RemittanceInformationUnstructured, "\n")
		return line
	}
	return record.AdditionalInformation
}

// ImportID derives the destination's idempotency key for one bank
// transaction: the booking date followed by the first 28 hex characters of
// the SHA-1 of the bank's transaction id, truncated to 36 characters.
// Ids from different booking days never collide.
func ImportID(bookingDate, transactionID string) string {
	sum := sha1.Sum([]byte(transactionID))
	id := bookingDate + hex.EncodeToString(sum[:])[:28]
	if len(id) > importIDMaxLen {
		id = id[:importIDMaxLen]
	}
	return id
}
