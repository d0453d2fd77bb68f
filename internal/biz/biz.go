package biz

import (
	"github.com/devricklin/feishu-vault/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Users     *usecase.UserUsecase
	Authoring *usecase.AuthoringUsecase
	Delivery  *usecase.DeliveryUsecase
	Broadcast *usecase.BroadcastUsecase
	Messages  *usecase.CannedMessageUsecase
}
