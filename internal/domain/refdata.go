package domain

import "time"

// KBDocument is an accounting-legislation knowledge-base entry.
type KBDocument struct {
	ID                  string           `json:"id"`
	Title               string           `json:"title"`
	SourceLaw           string           `json:"source_law"`
	SourceLawCode       string           `json:"source_law_code"`
	ArticleNumber       string           `json:"article_number"`
	ArticleTitle        string           `json:"article_title"`
	Summary             string           `json:"summary"`
	FullText            string           `json:"full_text,omitempty"`
	Status              KBDocumentStatus `json:"status"`
	ApplicableStandards []string         `json:"applicable_standards"`
	RelatedArticleIDs   []string         `json:"related_article_ids,omitempty"`
	LastAmendedDate     string           `json:"last_amended_date,omitempty"`
}

// KBCategory is a knowledge-base category node.
type KBCategory struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
}

// KBChange is one amendment in a document's change history.
type KBChange struct {
	ID            string `json:"id"`
	DocumentID    string `json:"document_id"`
	AmendmentDate string `json:"amendment_date"`
	AmendmentText string `json:"amendment_text"`
	GazetteNumber string `json:"gazette_number,omitempty"`
	GazetteDate   string `json:"gazette_date,omitempty"`
}

// KBSearchFilter narrows a knowledge-base search.
type KBSearchFilter struct {
	Query     string
	SourceLaw string
	Standard  string
	Status    KBDocumentStatus
	Limit     int
}

// Invoice is a tenant's sales invoice.
type Invoice struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	InvoiceNumber string    `json:"invoice_number"`
	CustomerID    string    `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	Status        string    `json:"status"`
	TotalAmount   float64   `json:"total_amount"`
	IssueDate     string    `json:"issue_date"`
	DueDate       string    `json:"due_date,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// InvoiceFilter narrows an invoice query.
type InvoiceFilter struct {
	InvoiceNumber string
	CustomerName  string
	CustomerID    string
	Status        string
	StartDate     string
	EndDate       string
	MinAmount     *float64
	MaxAmount     *float64
	Limit         int
}

// Customer is a tenant's customer account.
type Customer struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	City      string    `json:"city,omitempty"`
	Status    string    `json:"status"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomerFilter narrows a customer query.
type CustomerFilter struct {
	Name       string
	City       string
	Status     string
	MinBalance *float64
	Limit      int
}

// Product is a tenant's stock item.
type Product struct {
	ID            string  `json:"id"`
	TenantID      string  `json:"tenant_id"`
	Name          string  `json:"name"`
	SKU           string  `json:"sku"`
	Category      string  `json:"category,omitempty"`
	Price         float64 `json:"price"`
	Quantity      float64 `json:"quantity"`
	MinStockLevel float64 `json:"minimum_stock_level"`
}

// ProductFilter narrows a product query.
type ProductFilter struct {
	Category string
	LowStock bool
	MinPrice *float64
	MaxPrice *float64
	Limit    int
}

// Expense is a tenant's expense record.
type Expense struct {
	ID          string  `json:"id"`
	TenantID    string  `json:"tenant_id"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	ExpenseDate string  `json:"expense_date"`
}

// ExpenseFilter narrows an expense query.
type ExpenseFilter struct {
	Category  string
	Status    string
	StartDate string
	EndDate   string
	MinAmount *float64
	Limit     int
}

// FinancialSummary aggregates revenue and spend over a date range.
// Revenue splits by invoice status: 'draft' is pro forma, 'sent',
// 'paid' and 'overdue' are confirmed, 'cancelled' is excluded
// entirely. Profit and margin are computed on confirmed revenue only.
type FinancialSummary struct {
	StartDate           string  `json:"start_date"`
	EndDate             string  `json:"end_date"`
	TotalRevenue        float64 `json:"total_revenue"`
	ConfirmedRevenue    float64 `json:"confirmed_revenue"`
	DraftRevenue        float64 `json:"draft_revenue"`
	PaidRevenue         float64 `json:"paid_revenue"`
	TotalExpenses       float64 `json:"total_expenses"`
	Profit              float64 `json:"profit"`
	ProfitMarginPercent float64 `json:"profit_margin_percentage"`
	InvoiceCount        int     `json:"invoice_count"`
	ExpenseCount        int     `json:"expense_count"`
}
