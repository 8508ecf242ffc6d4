package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/barbarosson/advisory/internal/domain"
	"github.com/barbarosson/advisory/internal/store"
	"github.com/barbarosson/advisory/internal/tools"
)

const cfoPromptTemplate = `YOUR ROLE: You are an AI CFO assistant for a small-business ERP.
You answer questions about the tenant's own financial data: invoices,
customers, products, expenses, revenue and profitability.

RULES:
1. Always use the query tools to fetch real numbers before answering;
   never invent figures.
2. Revenue classification: 'draft' invoices are Pro Forma revenue;
   'sent', 'paid' and 'overdue' are confirmed revenue; 'cancelled'
   invoices are excluded from every calculation.
3. Profit is calculated on confirmed revenue only.
4. When a query returns no rows, say so plainly instead of guessing.
5. Format currency amounts with two decimals and state the period the
   figures cover.

Answer in Turkish by default; answer in English when the preferred
language is English. Use markdown tables for multi-row results.

Today's date: %s
Preferred language: %s`

// NewCFOProfile builds the financial analyst agent. All of its tools
// are tenant-scoped reads against the ERP tables.
func NewCFOProfile(st store.Store) *Profile {
	return &Profile{
		ID:      "cfo",
		Name:    "AI CFO Assistant",
		Actions: []domain.Action{domain.ActionChat, domain.ActionFeedback},
		Tools:   cfoTools(st),
		systemPrompt: func(date, language string) string {
			lang := "Turkish (default)"
			if language == "en" {
				lang = "English"
			}
			return fmt.Sprintf(cfoPromptTemplate, date, lang)
		},
	}
}

func cfoTools(st store.Store) *tools.Registry {
	return tools.MustNewRegistry(
		tools.Definition{
			Name:        "query_financial_summary",
			Description: "Get financial summary including total revenue, expenses, and profit for a date range",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start_date": map[string]any{"type": "string", "description": "Start date in YYYY-MM-DD format"},
					"end_date":   map[string]any{"type": "string", "description": "End date in YYYY-MM-DD format"},
				},
			},
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				var in struct {
					StartDate string `json:"start_date"`
					EndDate   string `json:"end_date"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
				summary, err := st.FinancialSummary(ctx, tenantID, in.StartDate, in.EndDate)
				if err != nil {
					return nil, err
				}
				note := "Profit is calculated using confirmed revenue only (excludes drafts)."
				if summary.InvoiceCount == 0 {
					note = "No invoices found for analysis in this period."
				}
				return map[string]any{
					"period":  fmt.Sprintf("%s to %s", in.StartDate, in.EndDate),
					"summary": summary,
					"note":    note,
				}, nil
			},
		},
		tools.Definition{
			Name:        "query_invoices",
			Description: "Query invoices with filters like invoice number, status, customer name/id, date range, or amount. Use this when the user asks about a specific invoice by number or customer name.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"invoice_number": map[string]any{"type": "string", "description": "Search by specific invoice number (e.g., INV-54530105)"},
					"customer_name":  map[string]any{"type": "string", "description": "Search by customer name (partial match supported)"},
					"status":         map[string]any{"type": "string", "enum": []string{"draft", "sent", "paid", "overdue", "cancelled"}},
					"customer_id":    map[string]any{"type": "string", "description": "Filter by customer UUID"},
					"start_date":     map[string]any{"type": "string", "description": "Filter invoices from this date"},
					"end_date":       map[string]any{"type": "string", "description": "Filter invoices until this date"},
					"min_amount":     map[string]any{"type": "number", "description": "Minimum invoice amount"},
					"max_amount":     map[string]any{"type": "number", "description": "Maximum invoice amount"},
				},
			},
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				var in struct {
					InvoiceNumber string   `json:"invoice_number"`
					CustomerName  string   `json:"customer_name"`
					Status        string   `json:"status"`
					CustomerID    string   `json:"customer_id"`
					StartDate     string   `json:"start_date"`
					EndDate       string   `json:"end_date"`
					MinAmount     *float64 `json:"min_amount"`
					MaxAmount     *float64 `json:"max_amount"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
				invoices, err := st.QueryInvoices(ctx, tenantID, domain.InvoiceFilter{
					InvoiceNumber: in.InvoiceNumber,
					CustomerName:  in.CustomerName,
					CustomerID:    in.CustomerID,
					Status:        in.Status,
					StartDate:     in.StartDate,
					EndDate:       in.EndDate,
					MinAmount:     in.MinAmount,
					MaxAmount:     in.MaxAmount,
					Limit:         20,
				})
				if err != nil {
					return nil, err
				}
				if len(invoices) == 0 {
					msg := "No invoices found matching these criteria."
					if in.CustomerName != "" {
						msg = fmt.Sprintf("No invoices found for customer %q.", in.CustomerName)
					}
					return map[string]any{"message": msg, "invoices": []domain.Invoice{}}, nil
				}
				return invoices, nil
			},
		},
		tools.Definition{
			Name:        "query_customers",
			Description: "Query customers with filters like name, city, status, or balance. Use this when the user asks about a specific customer by name.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":        map[string]any{"type": "string", "description": "Search by customer name (partial match supported, case-insensitive)"},
					"city":        map[string]any{"type": "string", "description": "Filter by city"},
					"status":      map[string]any{"type": "string", "enum": []string{"active", "inactive"}},
					"min_balance": map[string]any{"type": "number", "description": "Minimum account balance"},
				},
			},
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				var in struct {
					Name       string   `json:"name"`
					City       string   `json:"city"`
					Status     string   `json:"status"`
					MinBalance *float64 `json:"min_balance"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
				customers, err := st.QueryCustomers(ctx, tenantID, domain.CustomerFilter{
					Name:       in.Name,
					City:       in.City,
					Status:     in.Status,
					MinBalance: in.MinBalance,
					Limit:      20,
				})
				if err != nil {
					return nil, err
				}
				if customers == nil {
					customers = []domain.Customer{}
				}
				return customers, nil
			},
		},
		tools.Definition{
			Name:        "query_products",
			Description: "Query products with filters like category, low stock, or price range",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"category":  map[string]any{"type": "string"},
					"low_stock": map[string]any{"type": "boolean", "description": "Products below minimum stock level"},
					"min_price": map[string]any{"type": "number"},
					"max_price": map[string]any{"type": "number"},
				},
			},
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				var in struct {
					Category string   `json:"category"`
					LowStock bool     `json:"low_stock"`
					MinPrice *float64 `json:"min_price"`
					MaxPrice *float64 `json:"max_price"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
				products, err := st.QueryProducts(ctx, tenantID, domain.ProductFilter{
					Category: in.Category,
					LowStock: in.LowStock,
					MinPrice: in.MinPrice,
					MaxPrice: in.MaxPrice,
					Limit:    20,
				})
				if err != nil {
					return nil, err
				}
				if products == nil {
					products = []domain.Product{}
				}
				return products, nil
			},
		},
		tools.Definition{
			Name:        "query_expenses",
			Description: "Query expenses with filters like category, date range, or amount",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"category":   map[string]any{"type": "string"},
					"start_date": map[string]any{"type": "string"},
					"end_date":   map[string]any{"type": "string"},
					"status":     map[string]any{"type": "string", "enum": []string{"pending", "approved", "paid"}},
					"min_amount": map[string]any{"type": "number"},
				},
			},
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				var in struct {
					Category  string   `json:"category"`
					StartDate string   `json:"start_date"`
					EndDate   string   `json:"end_date"`
					Status    string   `json:"status"`
					MinAmount *float64 `json:"min_amount"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
				expenses, err := st.QueryExpenses(ctx, tenantID, domain.ExpenseFilter{
					Category:  in.Category,
					Status:    in.Status,
					StartDate: in.StartDate,
					EndDate:   in.EndDate,
					MinAmount: in.MinAmount,
					Limit:     20,
				})
				if err != nil {
					return nil, err
				}
				if expenses == nil {
					expenses = []domain.Expense{}
				}
				return expenses, nil
			},
		},
		tools.Definition{
			Name:        "calculate_profit_margin",
			Description: "Calculate profit margin for a date range",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start_date": map[string]any{"type": "string"},
					"end_date":   map[string]any{"type": "string"},
				},
			},
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				var in struct {
					StartDate string `json:"start_date"`
					EndDate   string `json:"end_date"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
				summary, err := st.FinancialSummary(ctx, tenantID, in.StartDate, in.EndDate)
				if err != nil {
					return nil, err
				}
				// Realized margin: paid invoices only, unlike the
				// confirmed-revenue profit in the summary.
				revenue := summary.PaidRevenue
				profit := revenue - summary.TotalExpenses
				margin := 0.0
				if revenue > 0 {
					margin = profit / revenue * 100
				}
				return map[string]any{
					"revenue":       fmt.Sprintf("%.2f", revenue),
					"expenses":      fmt.Sprintf("%.2f", summary.TotalExpenses),
					"profit":        fmt.Sprintf("%.2f", profit),
					"profit_margin": fmt.Sprintf("%.2f%%", margin),
					"margin_ratio":  fmt.Sprintf("%.4f", margin/100),
				}, nil
			},
		},
	)
}
