package ingest

import (
	"github.com/google/uuid"

	"ifood-ingestion-service/internal/models"
	"ifood-ingestion-service/internal/parsers"
	"ifood-ingestion-service/internal/rowkey"
	"ifood-ingestion-service/internal/sheet"
	ingerrors "ifood-ingestion-service/pkg/errors"
	"ifood-ingestion-service/pkg/logger"
)

// Conciliation report destination and batching. The payload lives on the
// second worksheet; the first carries a human-readable summary.
const (
	conciliationTable      = "ifood_conciliation"
	conciliationConflict   = "row_key"
	conciliationBatchSize  = 100
	conciliationSheetIndex = 1
)

// conciliationMapping translates normalized Portuguese export headers to the
// English database column names.
var conciliationMapping = map[string]string{
	"competencia":                   "competence_date",
	"data_fato_gerador":             "event_date",
	"fato_gerador":                  "event_trigger",
	"tipo_lancamento":               "transaction_type",
	"descricao_lancamento":          "transaction_description",
	"valor":                         "gross_value",
	"base_calculo":                  "calculation_base_value",
	"percentual_taxa":               "tax_percentage",
	"pedido_associado_ifood":        "ifood_order_id",
	"pedido_associado_ifood_curto":  "ifood_order_id_short",
	"pedido_associado_externo":      "external_order_id",
	"motivo_cancelamento":           "cancellation_reason",
	"descricao_ocorrencia":          "occurrence_description",
	"data_criacao_pedido_associado": "order_creation_date",
	"data_repasse_esperada":         "expected_payment_date",
	"valor_transacao":               "transaction_value",
	"loja_id":                       "store_id",
	"loja_id_curto":                 "store_id_short",
	"loja_id_externo":               "store_id_external",
	"cnpj":                          "cnpj",
	"titulo":                        "title",
	"data_faturamento":              "billing_date",
	"data_apuracao_inicio":          "settlement_start_date",
	"data_apuracao_fim":             "settlement_end_date",
	"valor_cesta_inicial":           "initial_basket_value",
	"valor_cesta_final":             "final_basket_value",
	"responsavel_transacao":         "transaction_responsible",
	"canal_vendas":                  "sales_channel",
	"impacto_no_repasse":            "payment_impact",
	"parcela_pagamento":             "payment_installment",
}

// conciliationColumns is the canonical column order used for the table
// schema and for the row key digest.
var conciliationColumns = []string{
	"competence_date", "event_date", "event_trigger", "transaction_type",
	"transaction_description", "gross_value", "calculation_base_value",
	"tax_percentage", "ifood_order_id", "ifood_order_id_short",
	"external_order_id", "cancellation_reason", "occurrence_description",
	"order_creation_date", "expected_payment_date", "transaction_value",
	"store_id", "store_id_short", "store_id_external", "cnpj", "title",
	"billing_date", "settlement_start_date", "settlement_end_date",
	"initial_basket_value", "final_basket_value", "transaction_responsible",
	"sales_channel", "payment_impact", "payment_installment",
}

var conciliationRequiredAll = []string{"competence_date", "gross_value"}

// The row key covers account plus every canonical column: a conciliation
// entry has no single natural identifier, so identical content is the same
// entry and any difference is a new one.
var conciliationKeyColumns = append([]string{"account_id"}, conciliationColumns...)

// prepareConciliation turns spreadsheet bytes into a deduplicated batch plan.
func prepareConciliation(file *models.ReceivedFile, data []byte, log logger.Logger) (*BatchPlan, error) {
	table, err := sheet.Load(data, sheet.LoadOptions{
		FileName:    file.OriginalFileName,
		SheetIndex:  conciliationSheetIndex,
		Mapping:     conciliationMapping,
		Canonical:   conciliationColumns,
		RequiredAll: conciliationRequiredAll,
	})
	if err != nil {
		return nil, err
	}
	if len(table.Rows) == 0 {
		return nil, ingerrors.SheetFormatError(ingerrors.CodeEmptySheet, file.OriginalFileName, nil, nil)
	}

	rows := make([]models.ConciliationRow, 0, len(table.Rows))
	for _, cells := range table.Rows {
		row := mapConciliationRow(cells)
		row.RowKey = rowkey.ContentHash(conciliationKeyColumns, conciliationCanonicalValues(file.AccountID, &row))
		rows = append(rows, row)
	}

	rows, dedup := dedupeConciliation(rows)
	if dedup > 0 {
		log.WithField("file_id", file.ID).
			Warnf("%d duplicated rows removed from the spreadsheet", dedup)
	}
	logConciliationSample(log, rows)

	records := make([]Record, 0, len(rows))
	for i := range rows {
		records = append(records, conciliationRecord(file, &rows[i]))
	}

	return &BatchPlan{
		Table:          conciliationTable,
		ConflictColumn: conciliationConflict,
		BatchSize:      conciliationBatchSize,
		Records:        records,
		Deduplicated:   dedup,
		AffectedDates:  competenceDates(rows),
		SourceRows:     len(table.Rows),
	}, nil
}

func mapConciliationRow(cells map[string]string) models.ConciliationRow {
	return models.ConciliationRow{
		CompetenceDate:         parsers.Date(cells["competence_date"]),
		EventDate:              parsers.Date(cells["event_date"]),
		EventTrigger:           text(cells["event_trigger"]),
		TransactionType:        text(cells["transaction_type"]),
		TransactionDescription: text(cells["transaction_description"]),
		GrossValue:             parsers.Currency(cells["gross_value"]),
		CalculationBaseValue:   parsers.Currency(cells["calculation_base_value"]),
		TaxPercentage:          parsers.Currency(cells["tax_percentage"]),
		IfoodOrderID:           parsers.Identifier(cells["ifood_order_id"]),
		IfoodOrderIDShort:      parsers.Identifier(cells["ifood_order_id_short"]),
		ExternalOrderID:        parsers.Identifier(cells["external_order_id"]),
		CancellationReason:     text(cells["cancellation_reason"]),
		OccurrenceDescription:  text(cells["occurrence_description"]),
		OrderCreationDate:      parsers.Date(cells["order_creation_date"]),
		ExpectedPaymentDate:    parsers.Date(cells["expected_payment_date"]),
		TransactionValue:       parsers.Currency(cells["transaction_value"]),
		StoreID:                parsers.Identifier(cells["store_id"]),
		StoreIDShort:           parsers.Identifier(cells["store_id_short"]),
		StoreIDExternal:        parsers.Identifier(cells["store_id_external"]),
		Cnpj:                   parsers.Identifier(cells["cnpj"]),
		Title:                  text(cells["title"]),
		BillingDate:            parsers.Date(cells["billing_date"]),
		SettlementStartDate:    parsers.Date(cells["settlement_start_date"]),
		SettlementEndDate:      parsers.Date(cells["settlement_end_date"]),
		InitialBasketValue:     parsers.Currency(cells["initial_basket_value"]),
		FinalBasketValue:       parsers.Currency(cells["final_basket_value"]),
		TransactionResponsible: text(cells["transaction_responsible"]),
		SalesChannel:           text(cells["sales_channel"]),
		PaymentImpact:          text(cells["payment_impact"]),
		PaymentInstallment:     text(cells["payment_installment"]),
	}
}

func conciliationCanonicalValues(accountID string, row *models.ConciliationRow) map[string]string {
	return map[string]string{
		"account_id":              accountID,
		"competence_date":         models.TimeValue(row.CompetenceDate),
		"event_date":              models.TimeValue(row.EventDate),
		"event_trigger":           models.StringValue(row.EventTrigger),
		"transaction_type":        models.StringValue(row.TransactionType),
		"transaction_description": models.StringValue(row.TransactionDescription),
		"gross_value":             models.FloatValue(row.GrossValue),
		"calculation_base_value":  models.FloatValue(row.CalculationBaseValue),
		"tax_percentage":          models.FloatValue(row.TaxPercentage),
		"ifood_order_id":          models.StringValue(row.IfoodOrderID),
		"ifood_order_id_short":    models.StringValue(row.IfoodOrderIDShort),
		"external_order_id":       models.StringValue(row.ExternalOrderID),
		"cancellation_reason":     models.StringValue(row.CancellationReason),
		"occurrence_description":  models.StringValue(row.OccurrenceDescription),
		"order_creation_date":     models.TimeValue(row.OrderCreationDate),
		"expected_payment_date":   models.TimeValue(row.ExpectedPaymentDate),
		"transaction_value":       models.FloatValue(row.TransactionValue),
		"store_id":                models.StringValue(row.StoreID),
		"store_id_short":          models.StringValue(row.StoreIDShort),
		"store_id_external":       models.StringValue(row.StoreIDExternal),
		"cnpj":                    models.StringValue(row.Cnpj),
		"title":                   models.StringValue(row.Title),
		"billing_date":            models.TimeValue(row.BillingDate),
		"settlement_start_date":   models.TimeValue(row.SettlementStartDate),
		"settlement_end_date":     models.TimeValue(row.SettlementEndDate),
		"initial_basket_value":    models.FloatValue(row.InitialBasketValue),
		"final_basket_value":      models.FloatValue(row.FinalBasketValue),
		"transaction_responsible": models.StringValue(row.TransactionResponsible),
		"sales_channel":           models.StringValue(row.SalesChannel),
		"payment_impact":          models.StringValue(row.PaymentImpact),
		"payment_installment":     models.StringValue(row.PaymentInstallment),
	}
}

// dedupeConciliation drops rows whose key already appeared, keeping the
// first occurrence. Conciliation exports repeat rows verbatim when an order
// spans summary sections, so later copies carry no new information.
func dedupeConciliation(rows []models.ConciliationRow) ([]models.ConciliationRow, int) {
	seen := make(map[string]bool, len(rows))
	kept := make([]models.ConciliationRow, 0, len(rows))
	for i := range rows {
		if seen[rows[i].RowKey] {
			continue
		}
		seen[rows[i].RowKey] = true
		kept = append(kept, rows[i])
	}
	return kept, len(rows) - len(kept)
}

func conciliationRecord(file *models.ReceivedFile, row *models.ConciliationRow) Record {
	record := Record{
		"id":                      uuid.NewString(),
		"account_id":              file.AccountID,
		"received_file_id":        file.ID,
		"row_key":                 row.RowKey,
		"competence_date":         parsers.ISODate(row.CompetenceDate),
		"event_date":              parsers.ISODate(row.EventDate),
		"event_trigger":           row.EventTrigger,
		"transaction_type":        row.TransactionType,
		"transaction_description": row.TransactionDescription,
		"gross_value":             row.GrossValue,
		"calculation_base_value":  row.CalculationBaseValue,
		"tax_percentage":          row.TaxPercentage,
		"ifood_order_id":          row.IfoodOrderID,
		"ifood_order_id_short":    row.IfoodOrderIDShort,
		"external_order_id":       row.ExternalOrderID,
		"cancellation_reason":     row.CancellationReason,
		"occurrence_description":  row.OccurrenceDescription,
		"order_creation_date":     parsers.ISODate(row.OrderCreationDate),
		"expected_payment_date":   parsers.ISODate(row.ExpectedPaymentDate),
		"transaction_value":       row.TransactionValue,
		"store_id":                row.StoreID,
		"store_id_short":          row.StoreIDShort,
		"store_id_external":       row.StoreIDExternal,
		"cnpj":                    row.Cnpj,
		"title":                   row.Title,
		"billing_date":            parsers.ISODate(row.BillingDate),
		"settlement_start_date":   parsers.ISODate(row.SettlementStartDate),
		"settlement_end_date":     parsers.ISODate(row.SettlementEndDate),
		"initial_basket_value":    row.InitialBasketValue,
		"final_basket_value":      row.FinalBasketValue,
		"transaction_responsible": row.TransactionResponsible,
		"sales_channel":           row.SalesChannel,
		"payment_impact":          row.PaymentImpact,
		"payment_installment":     row.PaymentInstallment,
	}
	record["raw_data"] = rawJSON(record)
	return record
}

func competenceDates(rows []models.ConciliationRow) []string {
	seen := make(map[string]bool)
	var dates []string
	for i := range rows {
		if rows[i].CompetenceDate == nil {
			continue
		}
		date := rows[i].CompetenceDate.Format("2006-01-02")
		if !seen[date] {
			seen[date] = true
			dates = append(dates, date)
		}
	}
	return dates
}

// logConciliationSample records the first rows at debug level so operators
// can inspect what the normalization produced for a given file.
func logConciliationSample(log logger.Logger, rows []models.ConciliationRow) {
	const sampleSize = 10
	for i := 0; i < len(rows) && i < sampleSize; i++ {
		log.WithFields(logger.Fields{
			"row":             i,
			"competence_date": models.TimeValue(rows[i].CompetenceDate),
			"gross_value":     models.FloatValue(rows[i].GrossValue),
			"title":           models.StringValue(rows[i].Title),
		}).Debug("normalized conciliation row")
	}
}
