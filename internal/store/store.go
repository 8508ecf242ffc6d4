// Package store defines the persistence interface and its SQLite and
// Postgres implementations.
package store

import (
	"context"
	"time"

	"github.com/barbarosson/advisory/internal/domain"
)

// Store is the persistence boundary of the advisory service. All thread,
// message and feedback access is tenant-scoped; knowledge-base reference
// data is shared across tenants.
type Store interface {
	// Threads
	CreateThread(ctx context.Context, thread *domain.Thread) error
	GetThread(ctx context.Context, tenantID, threadID string) (*domain.Thread, error)
	ListThreads(ctx context.Context, tenantID, agentID string, limit int) ([]domain.Thread, error)
	TouchThread(ctx context.Context, tenantID, threadID string, updatedAt time.Time) error

	// Messages
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetMessage(ctx context.Context, tenantID, messageID string) (*domain.Message, error)
	// GetRecentMessages returns up to limit of the newest messages in a
	// thread, ordered oldest first.
	GetRecentMessages(ctx context.Context, tenantID, threadID string, limit int) ([]domain.Message, error)

	// Feedback
	CreateFeedback(ctx context.Context, fb *domain.Feedback) error
	ListFeedback(ctx context.Context, tenantID, messageID string) ([]domain.Feedback, error)

	// Knowledge base
	CreateKBDocument(ctx context.Context, doc *domain.KBDocument) error
	CreateKBCategory(ctx context.Context, cat *domain.KBCategory) error
	CreateKBChange(ctx context.Context, ch *domain.KBChange) error
	SearchKBDocuments(ctx context.Context, f domain.KBSearchFilter) ([]domain.KBDocument, error)
	GetKBDocument(ctx context.Context, id string) (*domain.KBDocument, error)
	ListKBCategories(ctx context.Context) ([]domain.KBCategory, error)
	GetRelatedKBDocuments(ctx context.Context, id string) ([]domain.KBDocument, error)
	GetKBChangeHistory(ctx context.Context, documentID string) ([]domain.KBChange, error)
	UpdateKBDocumentStatus(ctx context.Context, id string, status domain.KBDocumentStatus) error

	// Finance
	CreateInvoice(ctx context.Context, inv *domain.Invoice) error
	CreateCustomer(ctx context.Context, cust *domain.Customer) error
	CreateProduct(ctx context.Context, p *domain.Product) error
	CreateExpense(ctx context.Context, e *domain.Expense) error
	QueryInvoices(ctx context.Context, tenantID string, f domain.InvoiceFilter) ([]domain.Invoice, error)
	QueryCustomers(ctx context.Context, tenantID string, f domain.CustomerFilter) ([]domain.Customer, error)
	QueryProducts(ctx context.Context, tenantID string, f domain.ProductFilter) ([]domain.Product, error)
	QueryExpenses(ctx context.Context, tenantID string, f domain.ExpenseFilter) ([]domain.Expense, error)
	FinancialSummary(ctx context.Context, tenantID, startDate, endDate string) (*domain.FinancialSummary, error)

	// Lifecycle
	Close() error
}
