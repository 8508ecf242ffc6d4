package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/barbarosson/advisory/internal/domain"
	"github.com/barbarosson/advisory/internal/store"
	"github.com/barbarosson/advisory/internal/tools"
)

const accountingPromptTemplate = `YOUR ROLE: You are an expert advisory consultant on Turkish accounting legislation.
You provide accurate, current and sourced opinions on accounting regulation to accounting
professionals, certified financial advisors and business managers.

SCOPE:
- Turkish accounting legislation, standards and practice only
- Tax audits, tax penalties and tax court rulings
- Financial, tax and operational accounting
- Ledgers, documents, financial reporting and post-reporting decisions

OUT OF SCOPE:
- Legal counsel (state explicitly that you cannot provide it)
- Tax planning or minimization strategies
- Carrier bookkeeping recommendations for a specific company or person

RULES:
1. SOURCING: end every opinion with the full legislation references used
   (source name, law/communique number, article number, last amendment date).
2. CURRENCY: check whether the cited provision is still in force; if repealed,
   say so and name the superseding rule.
3. STANDARD LEVEL: state whether the topic falls under MSUGT, BOBI FRS or
   TMS/TFRS and explain differences between them where relevant.
4. CONFLICTS: when the tax law and an accounting standard diverge, present both.
5. Use the search_knowledge_base tool before answering questions about specific
   legislation; if nothing is found, say so and answer from general knowledge.

ANSWER STRUCTURE (always use these sections):
## SHORT ANSWER
## LEGAL BASIS
## STANDARD LEVEL ANALYSIS
## PRACTICAL APPLICATION
## SOURCES
## CURRENCY NOTE
"This opinion is based on legislation in force as of %s."

Answer in Turkish by default; answer in English when the preferred language is English.
Use markdown formatting and debit/credit notation in journal entry examples.

Today's date: %s
Preferred language: %s`

// NewAccountingProfile builds the accounting legislation advisor. Its
// tools read the shared knowledge base; the single write tool flags a
// document's processing status and is policy-gated.
func NewAccountingProfile(st store.Store) *Profile {
	return &Profile{
		ID:      "accounting",
		Name:    "Accounting Legislation Advisor",
		Actions: []domain.Action{domain.ActionChat, domain.ActionFeedback, domain.ActionSearchKB},
		Tools:   accountingTools(st),
		systemPrompt: func(date, language string) string {
			lang := "Turkish (default)"
			if language == "en" {
				lang = "English"
			}
			return fmt.Sprintf(accountingPromptTemplate, date, date, lang)
		},
	}
}

func accountingTools(st store.Store) *tools.Registry {
	return tools.MustNewRegistry(
		tools.Definition{
			Name:        "search_knowledge_base",
			Description: "Search the accounting legislation knowledge base for relevant documents, laws, and standards. Use this for any question about Turkish accounting regulations.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":      map[string]any{"type": "string", "description": "Search query in Turkish or English"},
					"source_law": map[string]any{"type": "string", "description": `Filter by source law code (e.g., "213" for VUK, "6102" for TTK)`},
					"standard":   map[string]any{"type": "string", "description": "Filter by standard (MSUGT, BOBI FRS, TMS/TFRS)"},
					"status":     map[string]any{"type": "string", "enum": []string{"active", "obsolete", "superseded"}, "description": "Filter by document status"},
				},
				"required": []string{"query"},
			},
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				var in struct {
					Query     string `json:"query"`
					SourceLaw string `json:"source_law"`
					Standard  string `json:"standard"`
					Status    string `json:"status"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
				docs, err := st.SearchKBDocuments(ctx, domain.KBSearchFilter{
					Query:     in.Query,
					SourceLaw: in.SourceLaw,
					Standard:  in.Standard,
					Status:    domain.KBDocumentStatus(in.Status),
					Limit:     10,
				})
				if err != nil {
					return nil, err
				}
				if len(docs) == 0 {
					return map[string]any{
						"message": "No documents found in the knowledge base for this topic. Answer from general accounting knowledge.",
						"results": []domain.KBDocument{},
					}, nil
				}
				return docs, nil
			},
		},
		tools.Definition{
			Name:        "get_document_details",
			Description: "Get full details of a specific accounting legislation document by its ID",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"document_id": map[string]any{"type": "string", "description": `The document ID (e.g., "VUK_M257_2024")`},
				},
				"required": []string{"document_id"},
			},
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				var in struct {
					DocumentID string `json:"document_id"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
				doc, err := st.GetKBDocument(ctx, in.DocumentID)
				if err != nil {
					return nil, err
				}
				if doc == nil {
					return map[string]string{"message": "Document not found"}, nil
				}
				return doc, nil
			},
		},
		tools.Definition{
			Name:        "list_categories",
			Description: "List all knowledge base categories for accounting legislation",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				cats, err := st.ListKBCategories(ctx)
				if err != nil {
					return nil, err
				}
				if cats == nil {
					cats = []domain.KBCategory{}
				}
				return cats, nil
			},
		},
		tools.Definition{
			Name:        "get_related_documents",
			Description: "Get documents related to a specific article or topic",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"article_id": map[string]any{"type": "string", "description": "The article/document ID to find related documents for"},
				},
				"required": []string{"article_id"},
			},
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				var in struct {
					ArticleID string `json:"article_id"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
				docs, err := st.GetRelatedKBDocuments(ctx, in.ArticleID)
				if err != nil {
					return nil, err
				}
				if len(docs) == 0 {
					return map[string]any{"message": "No related documents found", "results": []domain.KBDocument{}}, nil
				}
				return docs, nil
			},
		},
		tools.Definition{
			Name:        "get_change_history",
			Description: "Get the amendment/change history of a specific legislation document. Use this to show how a law or regulation has changed over time.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"document_id": map[string]any{"type": "string", "description": "The document ID to get change history for"},
				},
				"required": []string{"document_id"},
			},
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				var in struct {
					DocumentID string `json:"document_id"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
				changes, err := st.GetKBChangeHistory(ctx, in.DocumentID)
				if err != nil {
					return nil, err
				}
				if len(changes) == 0 {
					return map[string]any{"message": "No change history found for this document", "results": []domain.KBChange{}}, nil
				}
				return changes, nil
			},
		},
		tools.Definition{
			Name:        "update_document_status",
			Description: "Mark a knowledge base document as active, obsolete or superseded after reviewing its currency. Use only when the user explicitly asks to flag a document.",
			Write:       true,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"document_id": map[string]any{"type": "string", "description": "The document ID to update"},
					"status":      map[string]any{"type": "string", "enum": []string{"active", "obsolete", "superseded"}},
				},
				"required": []string{"document_id", "status"},
			},
			Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
				var in struct {
					DocumentID string `json:"document_id"`
					Status     string `json:"status"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
				status := domain.KBDocumentStatus(in.Status)
				if !domain.ValidKBStatus(status) {
					return nil, fmt.Errorf("invalid status %q", in.Status)
				}
				if err := st.UpdateKBDocumentStatus(ctx, in.DocumentID, status); err != nil {
					return nil, err
				}
				return map[string]any{"document_id": in.DocumentID, "status": in.Status}, nil
			},
		},
	)
}
