package worker

import (
	"context"

	"github.com/shaiso/Docuflow/internal/domain"
	"github.com/shaiso/Docuflow/internal/mq"
)

// handleFileProcess обрабатывает сообщение file.process.
//
// Некорректный payload подтверждается и отбрасывается: повтор доставки
// его не исправит. Ошибка Run означает повторяемый сбой — сообщение
// возвращается в очередь (retry исчерпаются через DLQ).
func (w *Worker) handleFileProcess(ctx context.Context, msg *mq.Delivery) error {
	req, err := mq.ParsePayload[domain.ProcessRequest](&msg.Message)
	if err != nil {
		w.logger.Error("invalid file.process payload",
			"message_id", msg.Message.ID,
			"error", err)
		return nil
	}
	if req.FilePath == "" {
		w.logger.Error("file.process payload has no file_path",
			"message_id", msg.Message.ID)
		return nil
	}

	return w.driver.Run(ctx, req)
}
