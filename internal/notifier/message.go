package notifier

import (
	"fmt"

	"cargo_ingest/internal/domain"
)

const messageTemplate = `🚛 *Nova carga disponível*

*Viagem:* %s
*Tipo de transporte:* %s
*Origem:* %s
*Destino:* %s
*Produto:* %s
*Equipamento:* %s
*Previsão de coleta:* %s
*Entregas:* %s
*Valor do frete:* %s
*Encerramento:* %s

Acesse o portal: %s`

// FormatMessage renders the alert text for record. Missing fields read "N/A".
func FormatMessage(record *domain.LoadRecord, portalURL string) string {
	return fmt.Sprintf(messageTemplate,
		orNA(&record.TripID),
		orNA(record.TransportType),
		orNA(record.Origin),
		orNA(record.Destination),
		orNA(record.Product),
		orNA(record.Equipment),
		orNA(record.ExpectedPickupAt),
		orNA(record.DeliveryCount),
		orNA(record.FreightValue),
		orNA(record.FinishAt),
		orNA(&portalURL),
	)
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}
