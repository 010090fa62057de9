package intake

import (
	"encoding/json"

	"github.com/adjutant-ai/adjutant/internal/models"
)

// setItemStatus rewrites the status field of a stored action item document.
func setItemStatus(data []byte, status models.ItemStatus) ([]byte, error) {
	var item models.ActionItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	item.Status = status
	return json.Marshal(item)
}
