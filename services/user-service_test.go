package services

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestTransactionsUnsupported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			"illegal operation code",
			mongo.CommandError{Code: 20, Message: "Transaction numbers are only allowed on a replica set member or mongos"},
			true,
		},
		{
			"standalone message without code",
			errors.New("(IllegalOperation) Transaction numbers are only allowed on a replica set member or mongos"),
			true,
		},
		{
			"duplicate key",
			mongo.CommandError{Code: 11000, Message: "E11000 duplicate key error"},
			false,
		},
		{
			"plain transport failure",
			errors.New("connection reset by peer"),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transactionsUnsupported(tt.err); got != tt.want {
				t.Errorf("transactionsUnsupported(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
