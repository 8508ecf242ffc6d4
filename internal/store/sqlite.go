package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/barbarosson/advisory/internal/domain"
)

// SQLiteStore implements Store using SQLite. It is the development and
// test backend; production runs on Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_threads_tenant ON threads(tenant_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			metadata TEXT,
			FOREIGN KEY (thread_id) REFERENCES threads(thread_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS feedback (
			feedback_id TEXT PRIMARY KEY,
			message_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			solved_problem TEXT NOT NULL,
			is_accurate TEXT NOT NULL,
			is_clear TEXT NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			FOREIGN KEY (message_id) REFERENCES messages(message_id)
		)`,
		`CREATE TABLE IF NOT EXISTS kb_documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source_law TEXT NOT NULL DEFAULT '',
			source_law_code TEXT NOT NULL DEFAULT '',
			article_number TEXT NOT NULL DEFAULT '',
			article_title TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			full_text TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			applicable_standards TEXT NOT NULL DEFAULT '[]',
			related_article_ids TEXT NOT NULL DEFAULT '[]',
			last_amended_date TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS kb_categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			code TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			parent_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS kb_change_history (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			amendment_date TEXT NOT NULL,
			amendment_text TEXT NOT NULL,
			gazette_number TEXT NOT NULL DEFAULT '',
			gazette_date TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (document_id) REFERENCES kb_documents(id)
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			invoice_number TEXT NOT NULL,
			customer_id TEXT NOT NULL DEFAULT '',
			customer_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			total_amount REAL NOT NULL DEFAULT 0,
			issue_date TEXT NOT NULL,
			due_date TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_tenant ON invoices(tenant_id, issue_date)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			balance REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			quantity REAL NOT NULL DEFAULT 0,
			minimum_stock_level REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			amount REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			expense_date TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateThread inserts a new thread.
func (s *SQLiteStore) CreateThread(ctx context.Context, t *domain.Thread) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (thread_id, tenant_id, agent_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ThreadID, t.TenantID, t.AgentID, t.Title, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetThread retrieves a thread scoped to a tenant.
func (s *SQLiteStore) GetThread(ctx context.Context, tenantID, threadID string) (*domain.Thread, error) {
	var t domain.Thread
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id, tenant_id, agent_id, title, created_at, updated_at FROM threads WHERE thread_id = ? AND tenant_id = ?`,
		threadID, tenantID).Scan(&t.ThreadID, &t.TenantID, &t.AgentID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListThreads lists a tenant's threads for one agent, most recent first.
func (s *SQLiteStore) ListThreads(ctx context.Context, tenantID, agentID string, limit int) ([]domain.Thread, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id, tenant_id, agent_id, title, created_at, updated_at FROM threads
		 WHERE tenant_id = ? AND agent_id = ? ORDER BY updated_at DESC LIMIT ?`,
		tenantID, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []domain.Thread
	for rows.Next() {
		var t domain.Thread
		if err := rows.Scan(&t.ThreadID, &t.TenantID, &t.AgentID, &t.Title, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// TouchThread advances a thread's updated_at. The guard keeps updated_at
// monotonic when two requests race on the same thread.
func (s *SQLiteStore) TouchThread(ctx context.Context, tenantID, threadID string, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE threads SET updated_at = ? WHERE thread_id = ? AND tenant_id = ? AND updated_at <= ?`,
		updatedAt, threadID, tenantID, updatedAt)
	return err
}

// CreateMessage inserts a new message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, m *domain.Message) error {
	var metadata sql.NullString
	if m.Metadata != nil {
		metadata = sql.NullString{String: string(m.Metadata), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, thread_id, tenant_id, role, content, created_at, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.MessageID, m.ThreadID, m.TenantID, m.Role, m.Content, m.CreatedAt, metadata)
	return err
}

// GetMessage retrieves a message scoped to a tenant.
func (s *SQLiteStore) GetMessage(ctx context.Context, tenantID, messageID string) (*domain.Message, error) {
	var m domain.Message
	var metadata sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id, thread_id, tenant_id, role, content, created_at, metadata FROM messages WHERE message_id = ? AND tenant_id = ?`,
		messageID, tenantID).Scan(&m.MessageID, &m.ThreadID, &m.TenantID, &m.Role, &m.Content, &m.CreatedAt, &metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if metadata.Valid {
		m.Metadata = json.RawMessage(metadata.String)
	}
	return &m, nil
}

// GetRecentMessages returns the newest limit messages of a thread in
// ascending creation order.
func (s *SQLiteStore) GetRecentMessages(ctx context.Context, tenantID, threadID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, thread_id, tenant_id, role, content, created_at, metadata FROM (
			SELECT * FROM messages WHERE thread_id = ? AND tenant_id = ?
			ORDER BY created_at DESC, message_id DESC LIMIT ?
		) ORDER BY created_at ASC, message_id ASC`,
		threadID, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var metadata sql.NullString
		if err := rows.Scan(&m.MessageID, &m.ThreadID, &m.TenantID, &m.Role, &m.Content, &m.CreatedAt, &metadata); err != nil {
			return nil, err
		}
		if metadata.Valid {
			m.Metadata = json.RawMessage(metadata.String)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CreateFeedback inserts a feedback row.
func (s *SQLiteStore) CreateFeedback(ctx context.Context, fb *domain.Feedback) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (feedback_id, message_id, tenant_id, solved_problem, is_accurate, is_clear, comment, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.FeedbackID, fb.MessageID, fb.TenantID, fb.SolvedProblem, fb.IsAccurate, fb.IsClear, fb.Comment, fb.CreatedAt)
	return err
}

// ListFeedback returns feedback rows for a message, oldest first.
func (s *SQLiteStore) ListFeedback(ctx context.Context, tenantID, messageID string) ([]domain.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT feedback_id, message_id, tenant_id, solved_problem, is_accurate, is_clear, comment, created_at FROM feedback
		 WHERE message_id = ? AND tenant_id = ? ORDER BY created_at ASC`,
		messageID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		if err := rows.Scan(&fb.FeedbackID, &fb.MessageID, &fb.TenantID, &fb.SolvedProblem, &fb.IsAccurate, &fb.IsClear, &fb.Comment, &fb.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// CreateKBDocument inserts a knowledge-base document.
func (s *SQLiteStore) CreateKBDocument(ctx context.Context, d *domain.KBDocument) error {
	standards, _ := json.Marshal(d.ApplicableStandards)
	related, _ := json.Marshal(d.RelatedArticleIDs)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_documents (id, title, source_law, source_law_code, article_number, article_title, summary, full_text, status, applicable_standards, related_article_ids, last_amended_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.SourceLaw, d.SourceLawCode, d.ArticleNumber, d.ArticleTitle, d.Summary, d.FullText, d.Status, string(standards), string(related), d.LastAmendedDate)
	return err
}

// CreateKBCategory inserts a knowledge-base category.
func (s *SQLiteStore) CreateKBCategory(ctx context.Context, c *domain.KBCategory) error {
	var parent sql.NullString
	if c.ParentID != "" {
		parent = sql.NullString{String: c.ParentID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_categories (id, name, code, description, parent_id) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Code, c.Description, parent)
	return err
}

// CreateKBChange inserts a change-history entry.
func (s *SQLiteStore) CreateKBChange(ctx context.Context, c *domain.KBChange) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_change_history (id, document_id, amendment_date, amendment_text, gazette_number, gazette_date) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.DocumentID, c.AmendmentDate, c.AmendmentText, c.GazetteNumber, c.GazetteDate)
	return err
}

const kbDocumentColumns = `id, title, source_law, source_law_code, article_number, article_title, summary, full_text, status, applicable_standards, related_article_ids, last_amended_date`

func scanKBDocument(scan func(...any) error) (*domain.KBDocument, error) {
	var d domain.KBDocument
	var standards, related string
	if err := scan(&d.ID, &d.Title, &d.SourceLaw, &d.SourceLawCode, &d.ArticleNumber, &d.ArticleTitle, &d.Summary, &d.FullText, &d.Status, &standards, &related, &d.LastAmendedDate); err != nil {
		return nil, err
	}
	if standards != "" {
		_ = json.Unmarshal([]byte(standards), &d.ApplicableStandards)
	}
	if related != "" {
		_ = json.Unmarshal([]byte(related), &d.RelatedArticleIDs)
	}
	return &d, nil
}

// SearchKBDocuments searches documents by title, article title, summary
// and full text, with optional source-law, standard and status filters.
func (s *SQLiteStore) SearchKBDocuments(ctx context.Context, f domain.KBSearchFilter) ([]domain.KBDocument, error) {
	status := f.Status
	if status == "" {
		status = domain.KBStatusActive
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT ` + kbDocumentColumns + ` FROM kb_documents WHERE status = ?`
	args := []any{status}

	if f.SourceLaw != "" {
		query += ` AND source_law_code = ?`
		args = append(args, f.SourceLaw)
	}
	if f.Standard != "" {
		query += ` AND applicable_standards LIKE ?`
		args = append(args, `%"`+f.Standard+`"%`)
	}
	if f.Query != "" {
		term := "%" + strings.ToLower(f.Query) + "%"
		query += ` AND (LOWER(title) LIKE ? OR LOWER(article_title) LIKE ? OR LOWER(summary) LIKE ? OR LOWER(full_text) LIKE ?)`
		args = append(args, term, term, term, term)
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.KBDocument
	for rows.Next() {
		d, err := scanKBDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// GetKBDocument retrieves one document by id.
func (s *SQLiteStore) GetKBDocument(ctx context.Context, id string) (*domain.KBDocument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+kbDocumentColumns+` FROM kb_documents WHERE id = ?`, id)
	d, err := scanKBDocument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListKBCategories lists all categories ordered by id.
func (s *SQLiteStore) ListKBCategories(ctx context.Context) ([]domain.KBCategory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, code, description, parent_id FROM kb_categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []domain.KBCategory
	for rows.Next() {
		var c domain.KBCategory
		var parent sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.Description, &parent); err != nil {
			return nil, err
		}
		if parent.Valid {
			c.ParentID = parent.String
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// GetRelatedKBDocuments resolves a document's related_article_ids.
func (s *SQLiteStore) GetRelatedKBDocuments(ctx context.Context, id string) ([]domain.KBDocument, error) {
	doc, err := s.GetKBDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil || len(doc.RelatedArticleIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(doc.RelatedArticleIDs))
	args := make([]any, len(doc.RelatedArticleIDs))
	for i, rid := range doc.RelatedArticleIDs {
		placeholders[i] = "?"
		args[i] = rid
	}
	query := `SELECT ` + kbDocumentColumns + ` FROM kb_documents WHERE id IN (` + strings.Join(placeholders, ",") + `) ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.KBDocument
	for rows.Next() {
		d, err := scanKBDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// GetKBChangeHistory returns a document's amendments, newest first.
func (s *SQLiteStore) GetKBChangeHistory(ctx context.Context, documentID string) ([]domain.KBChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, amendment_date, amendment_text, gazette_number, gazette_date FROM kb_change_history
		 WHERE document_id = ? ORDER BY amendment_date DESC`,
		documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []domain.KBChange
	for rows.Next() {
		var c domain.KBChange
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.AmendmentDate, &c.AmendmentText, &c.GazetteNumber, &c.GazetteDate); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// UpdateKBDocumentStatus sets a document's processing status. The update
// is idempotent at the row level.
func (s *SQLiteStore) UpdateKBDocumentStatus(ctx context.Context, id string, status domain.KBDocumentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE kb_documents SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateInvoice inserts an invoice.
func (s *SQLiteStore) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, tenant_id, invoice_number, customer_id, customer_name, status, total_amount, issue_date, due_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.TenantID, inv.InvoiceNumber, inv.CustomerID, inv.CustomerName, inv.Status, inv.TotalAmount, inv.IssueDate, inv.DueDate, inv.CreatedAt)
	return err
}

// CreateCustomer inserts a customer.
func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (id, tenant_id, name, email, city, status, balance, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.Name, c.Email, c.City, c.Status, c.Balance, c.CreatedAt)
	return err
}

// CreateProduct inserts a product.
func (s *SQLiteStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, tenant_id, name, sku, category, price, quantity, minimum_stock_level) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TenantID, p.Name, p.SKU, p.Category, p.Price, p.Quantity, p.MinStockLevel)
	return err
}

// CreateExpense inserts an expense.
func (s *SQLiteStore) CreateExpense(ctx context.Context, e *domain.Expense) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, tenant_id, category, description, amount, status, expense_date) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.Category, e.Description, e.Amount, e.Status, e.ExpenseDate)
	return err
}

// QueryInvoices filters a tenant's invoices.
func (s *SQLiteStore) QueryInvoices(ctx context.Context, tenantID string, f domain.InvoiceFilter) ([]domain.Invoice, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, tenant_id, invoice_number, customer_id, customer_name, status, total_amount, issue_date, due_date, created_at FROM invoices WHERE tenant_id = ?`
	args := []any{tenantID}

	if f.InvoiceNumber != "" {
		query += ` AND invoice_number = ?`
		args = append(args, f.InvoiceNumber)
	}
	if f.CustomerName != "" {
		query += ` AND LOWER(customer_name) LIKE ?`
		args = append(args, "%"+strings.ToLower(f.CustomerName)+"%")
	}
	if f.CustomerID != "" {
		query += ` AND customer_id = ?`
		args = append(args, f.CustomerID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.StartDate != "" {
		query += ` AND issue_date >= ?`
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		query += ` AND issue_date <= ?`
		args = append(args, f.EndDate)
	}
	if f.MinAmount != nil {
		query += ` AND total_amount >= ?`
		args = append(args, *f.MinAmount)
	}
	if f.MaxAmount != nil {
		query += ` AND total_amount <= ?`
		args = append(args, *f.MaxAmount)
	}
	query += ` ORDER BY issue_date DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(&inv.ID, &inv.TenantID, &inv.InvoiceNumber, &inv.CustomerID, &inv.CustomerName, &inv.Status, &inv.TotalAmount, &inv.IssueDate, &inv.DueDate, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// QueryCustomers filters a tenant's customers.
func (s *SQLiteStore) QueryCustomers(ctx context.Context, tenantID string, f domain.CustomerFilter) ([]domain.Customer, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, tenant_id, name, email, city, status, balance, created_at FROM customers WHERE tenant_id = ?`
	args := []any{tenantID}

	if f.Name != "" {
		query += ` AND LOWER(name) LIKE ?`
		args = append(args, "%"+strings.ToLower(f.Name)+"%")
	}
	if f.City != "" {
		query += ` AND LOWER(city) = ?`
		args = append(args, strings.ToLower(f.City))
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.MinBalance != nil {
		query += ` AND balance >= ?`
		args = append(args, *f.MinBalance)
	}
	query += ` ORDER BY name LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.City, &c.Status, &c.Balance, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// QueryProducts filters a tenant's products.
func (s *SQLiteStore) QueryProducts(ctx context.Context, tenantID string, f domain.ProductFilter) ([]domain.Product, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, tenant_id, name, sku, category, price, quantity, minimum_stock_level FROM products WHERE tenant_id = ?`
	args := []any{tenantID}

	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.LowStock {
		query += ` AND quantity < minimum_stock_level`
	}
	if f.MinPrice != nil {
		query += ` AND price >= ?`
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query += ` AND price <= ?`
		args = append(args, *f.MaxPrice)
	}
	query += ` ORDER BY name LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.SKU, &p.Category, &p.Price, &p.Quantity, &p.MinStockLevel); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// QueryExpenses filters a tenant's expenses.
func (s *SQLiteStore) QueryExpenses(ctx context.Context, tenantID string, f domain.ExpenseFilter) ([]domain.Expense, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, tenant_id, category, description, amount, status, expense_date FROM expenses WHERE tenant_id = ?`
	args := []any{tenantID}

	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.StartDate != "" {
		query += ` AND expense_date >= ?`
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		query += ` AND expense_date <= ?`
		args = append(args, f.EndDate)
	}
	if f.MinAmount != nil {
		query += ` AND amount >= ?`
		args = append(args, *f.MinAmount)
	}
	query += ` ORDER BY expense_date DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []domain.Expense
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Category, &e.Description, &e.Amount, &e.Status, &e.ExpenseDate); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// FinancialSummary aggregates invoices and expenses in a date range.
// Empty dates leave the corresponding bound open. Profit and margin
// use confirmed revenue only; drafts are reported separately.
func (s *SQLiteStore) FinancialSummary(ctx context.Context, tenantID, startDate, endDate string) (*domain.FinancialSummary, error) {
	sum := &domain.FinancialSummary{StartDate: startDate, EndDate: endDate}

	revQuery := `SELECT
		COALESCE(SUM(CASE WHEN status = 'draft' THEN total_amount ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status IN ('sent', 'paid', 'overdue') THEN total_amount ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'paid' THEN total_amount ELSE 0 END), 0),
		COUNT(*)
	FROM invoices WHERE tenant_id = ? AND status != 'cancelled'`
	revArgs := []any{tenantID}
	if startDate != "" {
		revQuery += ` AND issue_date >= ?`
		revArgs = append(revArgs, startDate)
	}
	if endDate != "" {
		revQuery += ` AND issue_date <= ?`
		revArgs = append(revArgs, endDate)
	}
	if err := s.db.QueryRowContext(ctx, revQuery, revArgs...).Scan(&sum.DraftRevenue, &sum.ConfirmedRevenue, &sum.PaidRevenue, &sum.InvoiceCount); err != nil {
		return nil, err
	}
	sum.TotalRevenue = sum.DraftRevenue + sum.ConfirmedRevenue

	expQuery := `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM expenses WHERE tenant_id = ?`
	expArgs := []any{tenantID}
	if startDate != "" {
		expQuery += ` AND expense_date >= ?`
		expArgs = append(expArgs, startDate)
	}
	if endDate != "" {
		expQuery += ` AND expense_date <= ?`
		expArgs = append(expArgs, endDate)
	}
	if err := s.db.QueryRowContext(ctx, expQuery, expArgs...).Scan(&sum.TotalExpenses, &sum.ExpenseCount); err != nil {
		return nil, err
	}

	sum.Profit = sum.ConfirmedRevenue - sum.TotalExpenses
	if sum.ConfirmedRevenue > 0 {
		sum.ProfitMarginPercent = sum.Profit / sum.ConfirmedRevenue * 100
	}
	return sum, nil
}
