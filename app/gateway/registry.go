package gateway

import (
	"errors"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
)

var ErrNotSupported = errors.New("payment method is not supported")

type Registry struct {
	clients map[entity.PaymentMethod]Client
}

func NewRegistry(clients ...Client) *Registry {
	items := make(map[entity.PaymentMethod]Client, len(clients))
	for _, c := range clients {
		items[c.Method()] = c
	}
	return &Registry{clients: items}
}

func (r *Registry) Get(method entity.PaymentMethod) (Client, error) {
	client, ok := r.clients[method]
	if !ok {
		return nil, ErrNotSupported
	}
	return client, nil
}
