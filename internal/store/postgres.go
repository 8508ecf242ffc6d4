package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/barbarosson/advisory/internal/domain"
)

// PostgresStore implements Store on Postgres, the managed relational
// backend the service runs against in production.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to Postgres and runs migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_threads_tenant ON threads(tenant_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL REFERENCES threads(thread_id),
			tenant_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			metadata JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS feedback (
			feedback_id TEXT PRIMARY KEY,
			message_id TEXT NOT NULL REFERENCES messages(message_id),
			tenant_id TEXT NOT NULL,
			solved_problem TEXT NOT NULL,
			is_accurate TEXT NOT NULL,
			is_clear TEXT NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
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
			document_id TEXT NOT NULL REFERENCES kb_documents(id),
			amendment_date TEXT NOT NULL,
			amendment_text TEXT NOT NULL,
			gazette_number TEXT NOT NULL DEFAULT '',
			gazette_date TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			invoice_number TEXT NOT NULL,
			customer_id TEXT NOT NULL DEFAULT '',
			customer_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			total_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			issue_date TEXT NOT NULL,
			due_date TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_tenant ON invoices(tenant_id, issue_date)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			balance DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
			minimum_stock_level DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			amount DOUBLE PRECISION NOT NULL DEFAULT 0,
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// CreateThread inserts a new thread.
func (s *PostgresStore) CreateThread(ctx context.Context, t *domain.Thread) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (thread_id, tenant_id, agent_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ThreadID, t.TenantID, t.AgentID, t.Title, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetThread retrieves a thread scoped to a tenant.
func (s *PostgresStore) GetThread(ctx context.Context, tenantID, threadID string) (*domain.Thread, error) {
	var t domain.Thread
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id, tenant_id, agent_id, title, created_at, updated_at FROM threads WHERE thread_id = $1 AND tenant_id = $2`,
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
func (s *PostgresStore) ListThreads(ctx context.Context, tenantID, agentID string, limit int) ([]domain.Thread, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id, tenant_id, agent_id, title, created_at, updated_at FROM threads
		 WHERE tenant_id = $1 AND agent_id = $2 ORDER BY updated_at DESC LIMIT $3`,
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

// TouchThread advances a thread's updated_at, never moving it backwards.
func (s *PostgresStore) TouchThread(ctx context.Context, tenantID, threadID string, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE threads SET updated_at = $1 WHERE thread_id = $2 AND tenant_id = $3 AND updated_at <= $1`,
		updatedAt, threadID, tenantID)
	return err
}

// CreateMessage inserts a new message.
func (s *PostgresStore) CreateMessage(ctx context.Context, m *domain.Message) error {
	var metadata any
	if m.Metadata != nil {
		metadata = string(m.Metadata)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, thread_id, tenant_id, role, content, created_at, metadata) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.MessageID, m.ThreadID, m.TenantID, m.Role, m.Content, m.CreatedAt, metadata)
	return err
}

// GetMessage retrieves a message scoped to a tenant.
func (s *PostgresStore) GetMessage(ctx context.Context, tenantID, messageID string) (*domain.Message, error) {
	var m domain.Message
	var metadata sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id, thread_id, tenant_id, role, content, created_at, metadata FROM messages WHERE message_id = $1 AND tenant_id = $2`,
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
func (s *PostgresStore) GetRecentMessages(ctx context.Context, tenantID, threadID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, thread_id, tenant_id, role, content, created_at, metadata FROM (
			SELECT * FROM messages WHERE thread_id = $1 AND tenant_id = $2
			ORDER BY created_at DESC, message_id DESC LIMIT $3
		) recent ORDER BY created_at ASC, message_id ASC`,
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
func (s *PostgresStore) CreateFeedback(ctx context.Context, fb *domain.Feedback) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (feedback_id, message_id, tenant_id, solved_problem, is_accurate, is_clear, comment, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		fb.FeedbackID, fb.MessageID, fb.TenantID, fb.SolvedProblem, fb.IsAccurate, fb.IsClear, fb.Comment, fb.CreatedAt)
	return err
}

// ListFeedback returns feedback rows for a message, oldest first.
func (s *PostgresStore) ListFeedback(ctx context.Context, tenantID, messageID string) ([]domain.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT feedback_id, message_id, tenant_id, solved_problem, is_accurate, is_clear, comment, created_at FROM feedback
		 WHERE message_id = $1 AND tenant_id = $2 ORDER BY created_at ASC`,
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
func (s *PostgresStore) CreateKBDocument(ctx context.Context, d *domain.KBDocument) error {
	standards, _ := json.Marshal(d.ApplicableStandards)
	related, _ := json.Marshal(d.RelatedArticleIDs)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_documents (id, title, source_law, source_law_code, article_number, article_title, summary, full_text, status, applicable_standards, related_article_ids, last_amended_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.Title, d.SourceLaw, d.SourceLawCode, d.ArticleNumber, d.ArticleTitle, d.Summary, d.FullText, d.Status, string(standards), string(related), d.LastAmendedDate)
	return err
}

// CreateKBCategory inserts a knowledge-base category.
func (s *PostgresStore) CreateKBCategory(ctx context.Context, c *domain.KBCategory) error {
	var parent sql.NullString
	if c.ParentID != "" {
		parent = sql.NullString{String: c.ParentID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_categories (id, name, code, description, parent_id) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Code, c.Description, parent)
	return err
}

// CreateKBChange inserts a change-history entry.
func (s *PostgresStore) CreateKBChange(ctx context.Context, c *domain.KBChange) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_change_history (id, document_id, amendment_date, amendment_text, gazette_number, gazette_date) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.DocumentID, c.AmendmentDate, c.AmendmentText, c.GazetteNumber, c.GazetteDate)
	return err
}

// SearchKBDocuments searches documents with ILIKE across the text
// columns, with optional source-law, standard and status filters.
func (s *PostgresStore) SearchKBDocuments(ctx context.Context, f domain.KBSearchFilter) ([]domain.KBDocument, error) {
	status := f.Status
	if status == "" {
		status = domain.KBStatusActive
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	query := `SELECT ` + kbDocumentColumns + ` FROM kb_documents WHERE status = ` + arg(status)
	if f.SourceLaw != "" {
		query += ` AND source_law_code = ` + arg(f.SourceLaw)
	}
	if f.Standard != "" {
		query += ` AND applicable_standards LIKE ` + arg(`%"`+f.Standard+`"%`)
	}
	if f.Query != "" {
		p := arg("%" + f.Query + "%")
		query += fmt.Sprintf(` AND (title ILIKE %[1]s OR article_title ILIKE %[1]s OR summary ILIKE %[1]s OR full_text ILIKE %[1]s)`, p)
	}
	query += ` ORDER BY id LIMIT ` + arg(limit)

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
func (s *PostgresStore) GetKBDocument(ctx context.Context, id string) (*domain.KBDocument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+kbDocumentColumns+` FROM kb_documents WHERE id = $1`, id)
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
func (s *PostgresStore) ListKBCategories(ctx context.Context) ([]domain.KBCategory, error) {
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
func (s *PostgresStore) GetRelatedKBDocuments(ctx context.Context, id string) ([]domain.KBDocument, error) {
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
		placeholders[i] = fmt.Sprintf("$%d", i+1)
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
func (s *PostgresStore) GetKBChangeHistory(ctx context.Context, documentID string) ([]domain.KBChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, amendment_date, amendment_text, gazette_number, gazette_date FROM kb_change_history
		 WHERE document_id = $1 ORDER BY amendment_date DESC`,
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

// UpdateKBDocumentStatus sets a document's processing status.
func (s *PostgresStore) UpdateKBDocumentStatus(ctx context.Context, id string, status domain.KBDocumentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE kb_documents SET status = $1 WHERE id = $2`, status, id)
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
func (s *PostgresStore) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, tenant_id, invoice_number, customer_id, customer_name, status, total_amount, issue_date, due_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inv.ID, inv.TenantID, inv.InvoiceNumber, inv.CustomerID, inv.CustomerName, inv.Status, inv.TotalAmount, inv.IssueDate, inv.DueDate, inv.CreatedAt)
	return err
}

// CreateCustomer inserts a customer.
func (s *PostgresStore) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (id, tenant_id, name, email, city, status, balance, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.TenantID, c.Name, c.Email, c.City, c.Status, c.Balance, c.CreatedAt)
	return err
}

// CreateProduct inserts a product.
func (s *PostgresStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, tenant_id, name, sku, category, price, quantity, minimum_stock_level) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.TenantID, p.Name, p.SKU, p.Category, p.Price, p.Quantity, p.MinStockLevel)
	return err
}

// CreateExpense inserts an expense.
func (s *PostgresStore) CreateExpense(ctx context.Context, e *domain.Expense) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, tenant_id, category, description, amount, status, expense_date) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.TenantID, e.Category, e.Description, e.Amount, e.Status, e.ExpenseDate)
	return err
}

// QueryInvoices filters a tenant's invoices.
func (s *PostgresStore) QueryInvoices(ctx context.Context, tenantID string, f domain.InvoiceFilter) ([]domain.Invoice, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	query := `SELECT id, tenant_id, invoice_number, customer_id, customer_name, status, total_amount, issue_date, due_date, created_at FROM invoices WHERE tenant_id = ` + arg(tenantID)
	if f.InvoiceNumber != "" {
		query += ` AND invoice_number = ` + arg(f.InvoiceNumber)
	}
	if f.CustomerName != "" {
		query += ` AND customer_name ILIKE ` + arg("%"+f.CustomerName+"%")
	}
	if f.CustomerID != "" {
		query += ` AND customer_id = ` + arg(f.CustomerID)
	}
	if f.Status != "" {
		query += ` AND status = ` + arg(f.Status)
	}
	if f.StartDate != "" {
		query += ` AND issue_date >= ` + arg(f.StartDate)
	}
	if f.EndDate != "" {
		query += ` AND issue_date <= ` + arg(f.EndDate)
	}
	if f.MinAmount != nil {
		query += ` AND total_amount >= ` + arg(*f.MinAmount)
	}
	if f.MaxAmount != nil {
		query += ` AND total_amount <= ` + arg(*f.MaxAmount)
	}
	query += ` ORDER BY issue_date DESC LIMIT ` + arg(limit)

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
func (s *PostgresStore) QueryCustomers(ctx context.Context, tenantID string, f domain.CustomerFilter) ([]domain.Customer, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	query := `SELECT id, tenant_id, name, email, city, status, balance, created_at FROM customers WHERE tenant_id = ` + arg(tenantID)
	if f.Name != "" {
		query += ` AND name ILIKE ` + arg("%"+f.Name+"%")
	}
	if f.City != "" {
		query += ` AND city ILIKE ` + arg(f.City)
	}
	if f.Status != "" {
		query += ` AND status = ` + arg(f.Status)
	}
	if f.MinBalance != nil {
		query += ` AND balance >= ` + arg(*f.MinBalance)
	}
	query += ` ORDER BY name LIMIT ` + arg(limit)

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
func (s *PostgresStore) QueryProducts(ctx context.Context, tenantID string, f domain.ProductFilter) ([]domain.Product, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	query := `SELECT id, tenant_id, name, sku, category, price, quantity, minimum_stock_level FROM products WHERE tenant_id = ` + arg(tenantID)
	if f.Category != "" {
		query += ` AND category = ` + arg(f.Category)
	}
	if f.LowStock {
		query += ` AND quantity < minimum_stock_level`
	}
	if f.MinPrice != nil {
		query += ` AND price >= ` + arg(*f.MinPrice)
	}
	if f.MaxPrice != nil {
		query += ` AND price <= ` + arg(*f.MaxPrice)
	}
	query += ` ORDER BY name LIMIT ` + arg(limit)

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
func (s *PostgresStore) QueryExpenses(ctx context.Context, tenantID string, f domain.ExpenseFilter) ([]domain.Expense, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	query := `SELECT id, tenant_id, category, description, amount, status, expense_date FROM expenses WHERE tenant_id = ` + arg(tenantID)
	if f.Category != "" {
		query += ` AND category = ` + arg(f.Category)
	}
	if f.Status != "" {
		query += ` AND status = ` + arg(f.Status)
	}
	if f.StartDate != "" {
		query += ` AND expense_date >= ` + arg(f.StartDate)
	}
	if f.EndDate != "" {
		query += ` AND expense_date <= ` + arg(f.EndDate)
	}
	if f.MinAmount != nil {
		query += ` AND amount >= ` + arg(*f.MinAmount)
	}
	query += ` ORDER BY expense_date DESC LIMIT ` + arg(limit)

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
// Profit and margin use confirmed revenue only; drafts are reported
// separately.
func (s *PostgresStore) FinancialSummary(ctx context.Context, tenantID, startDate, endDate string) (*domain.FinancialSummary, error) {
	sum := &domain.FinancialSummary{StartDate: startDate, EndDate: endDate}

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	revQuery := `SELECT
		COALESCE(SUM(CASE WHEN status = 'draft' THEN total_amount ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status IN ('sent', 'paid', 'overdue') THEN total_amount ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'paid' THEN total_amount ELSE 0 END), 0),
		COUNT(*)
	FROM invoices WHERE tenant_id = ` + arg(tenantID) + ` AND status != 'cancelled'`
	if startDate != "" {
		revQuery += ` AND issue_date >= ` + arg(startDate)
	}
	if endDate != "" {
		revQuery += ` AND issue_date <= ` + arg(endDate)
	}
	if err := s.db.QueryRowContext(ctx, revQuery, args...).Scan(&sum.DraftRevenue, &sum.ConfirmedRevenue, &sum.PaidRevenue, &sum.InvoiceCount); err != nil {
		return nil, err
	}
	sum.TotalRevenue = sum.DraftRevenue + sum.ConfirmedRevenue

	args = nil
	expQuery := `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM expenses WHERE tenant_id = ` + arg(tenantID)
	if startDate != "" {
		expQuery += ` AND expense_date >= ` + arg(startDate)
	}
	if endDate != "" {
		expQuery += ` AND expense_date <= ` + arg(endDate)
	}
	if err := s.db.QueryRowContext(ctx, expQuery, args...).Scan(&sum.TotalExpenses, &sum.ExpenseCount); err != nil {
		return nil, err
	}

	sum.Profit = sum.ConfirmedRevenue - sum.TotalExpenses
	if sum.ConfirmedRevenue > 0 {
		sum.ProfitMarginPercent = sum.Profit / sum.ConfirmedRevenue * 100
	}
	return sum, nil
}
