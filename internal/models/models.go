// Package models defines the typed records flowing through the ingestion
// pipelines: the ReceivedFile lifecycle record and the per-pipeline
// normalized transaction rows.
//
// Source rows arrive as loosely-typed cell maps at the sheet boundary; the
// pipelines map them into these structs immediately so the rest of the core
// never touches free-form dictionaries. Nullable fields are pointers: nil
// means the source cell was missing or failed to parse.
package models

import (
	"fmt"
	"strconv"
	"time"
)

// FileStatus represents the lifecycle state of a ReceivedFile
type FileStatus string

const (
	// StatusReceived is the initial state assigned when an upload is accepted
	StatusReceived FileStatus = "received"
	// StatusPending is an alias initial state used by older upload paths
	StatusPending FileStatus = "pending"
	// StatusProcessing means an ingestion run currently owns the file
	StatusProcessing FileStatus = "processing"
	// StatusProcessed is the terminal success state
	StatusProcessed FileStatus = "processed"
	// StatusError is the terminal failure state
	StatusError FileStatus = "error"
)

// String returns the string representation of FileStatus
func (s FileStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known lifecycle state
func (s FileStatus) IsValid() bool {
	switch s {
	case StatusReceived, StatusPending, StatusProcessing, StatusProcessed, StatusError:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the lifecycle
func (s FileStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusError
}

// ReceivedFile is the durable tracking record for one uploaded spreadsheet.
// It is never deleted; the orchestrator is the only writer of its status.
type ReceivedFile struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"account_id"`
	OriginalFileName string     `json:"original_file_name"`
	StoragePath      string     `json:"storage_path"`
	Status           FileStatus `json:"status"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	ErrorDetails     *string    `json:"error_details,omitempty"`
}

// Validate checks the lifecycle invariants: processed_at is set if and only
// if the file is processed, and error files carry an error message.
func (f *ReceivedFile) Validate() error {
	if !f.Status.IsValid() {
		return fmt.Errorf("unknown file status: %s", f.Status)
	}
	if (f.Status == StatusProcessed) != (f.ProcessedAt != nil) {
		return fmt.Errorf("file %s: processed_at must be set exactly when status is processed (status=%s)", f.ID, f.Status)
	}
	if (f.Status == StatusError) != (f.ErrorMessage != nil) {
		return fmt.Errorf("file %s: error_message must be set exactly when status is error (status=%s)", f.ID, f.Status)
	}
	return nil
}

// FinancialRow is one normalized row of the iFood financial (sales) report.
// Database column names remain the Portuguese schema names; struct fields
// use English for code clarity.
type FinancialRow struct {
	StoreID              *string    // loja_id
	StoreName            *string    // nome_da_loja
	BillingType          *string    // tipo_de_faturamento
	SalesChannel         *string    // canal_de_vendas
	OrderNumber          *string    // numero_pedido
	OrderID              *string    // pedido_id_completo
	OrderDate            *time.Time // data_do_pedido_ocorrencia
	ConclusionDate       *time.Time // data_de_conclusao
	PayoutDate           *time.Time // data_de_repasse
	PaymentOrigin        *string    // origem_de_forma_de_pagamento
	PaymentMethods       *string    // formas_de_pagamento
	OrderTotal           *float64   // total_do_pedido
	ItemsValue           *float64   // valor_dos_itens
	DeliveryFee          *float64   // taxa_de_entrega
	ServiceFee           *float64   // taxa_de_servico
	IfoodPromo           *float64   // promocao_custeada_pelo_ifood
	StorePromo           *float64   // promocao_custeada_pela_loja
	IfoodCommissionPct   *float64   // percentual_comissao_ifood
	IfoodCommissionValue *float64   // valor_comissao_ifood
	PaymentTxPct         *float64   // percentual_pela_transacao_do_pagamento
	PaymentTxValue       *float64   // comissao_pela_transacao_do_pagamento
	PayoutPlanPct        *float64   // percentual_taxa_plano_repasse_1_semana
	PayoutPlanValue      *float64   // valor_taxa_plano_repasse_1_semana
	CalcBase             *float64   // base_de_calculo
	GrossValue           *float64   // valor_bruto
	DeliveryRequest      *float64   // solicitacao_servicos_entrega_ifood
	DeliveryDiscount     *float64   // desconto_solicitacao_entrega_ifood
	NetValue             *float64   // valor_liquido
	OccurrenceValue      *float64   // valor_ocorrencia

	ContentHash string
	UpsertKey   string
}

// ConciliationRow is one normalized row of the iFood conciliation report.
type ConciliationRow struct {
	CompetenceDate         *time.Time // competence_date
	EventDate              *time.Time // event_date
	EventTrigger           *string    // event_trigger
	TransactionType        *string    // transaction_type
	TransactionDescription *string    // transaction_description
	GrossValue             *float64   // gross_value
	CalculationBaseValue   *float64   // calculation_base_value
	TaxPercentage          *float64   // tax_percentage
	IfoodOrderID           *string    // ifood_order_id
	IfoodOrderIDShort      *string    // ifood_order_id_short
	ExternalOrderID        *string    // external_order_id
	CancellationReason     *string    // cancellation_reason
	OccurrenceDescription  *string    // occurrence_description
	OrderCreationDate      *time.Time // order_creation_date
	ExpectedPaymentDate    *time.Time // expected_payment_date
	TransactionValue       *float64   // transaction_value
	StoreID                *string    // store_id
	StoreIDShort           *string    // store_id_short
	StoreIDExternal        *string    // store_id_external
	Cnpj                   *string    // cnpj
	Title                  *string    // title
	BillingDate            *time.Time // billing_date
	SettlementStartDate    *time.Time // settlement_start_date
	SettlementEndDate      *time.Time // settlement_end_date
	InitialBasketValue     *float64   // initial_basket_value
	FinalBasketValue       *float64   // final_basket_value
	TransactionResponsible *string    // transaction_responsible
	SalesChannel           *string    // sales_channel
	PaymentImpact          *string    // payment_impact
	PaymentInstallment     *string    // payment_installment

	RowKey string
}

// DailyKpi is a per-tenant per-day aggregate recomputed from transaction
// rows; it is derived data and never hand-edited.
type DailyKpi struct {
	AccountID  string    `json:"account_id"`
	KpiDate    string    `json:"kpi_date"`
	TotalSales float64   `json:"total_sales"`
	OrderCount int       `json:"order_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Result is the caller-facing outcome of an ingestion run.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	FileID  string `json:"file_id,omitempty"`
}

// WriteReport summarizes a batch upsert pass.
type WriteReport struct {
	RowsWritten   int
	Batches       int
	Deduplicated  int
	AffectedDates []string
}

// Canonical string coercions shared by key derivation and raw_data
// serialization. Null coerces to the empty string so digests stay stable.

// StringValue coerces a nullable string for digesting
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// FloatValue coerces a nullable float for digesting, using the shortest
// round-trip representation
func FloatValue(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// TimeValue coerces a nullable timestamp for digesting as ISO-8601
func TimeValue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02T15:04:05")
}
