package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	cowswap "github.com/sophon-org/cowswap-sdk-go"
)

// Walks the full order lifecycle on Sepolia: quote, fee estimation,
// signing, submission and read-back. Requires PRIVATE_KEY in the
// environment or a .env file.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	privateKey := os.Getenv("PRIVATE_KEY")
	if privateKey == "" {
		logger.Error("PRIVATE_KEY not set")
		os.Exit(1)
	}

	client, err := cowswap.NewClient(cowswap.ClientConfig{
		Network: cowswap.NetworkSepolia,
	})
	if err != nil {
		logger.Error("create client", "error", err)
		os.Exit(1)
	}

	weth := client.WrappedNativeToken()
	cowToken := common.HexToAddress("0x0625aFB445C3B6B7B929342a04A22599fd5dBB59")

	quote, err := client.GetEstimatedAmount(weth, cowToken, cowswap.OrderKindSell, big.NewInt(1e16))
	if err != nil {
		if refusal, ok := cowswap.IsOrderError(err); ok {
			logger.Error("quote refused", "errorType", refusal.ErrorType, "description", refusal.Description)
		} else {
			logger.Error("quote failed", "error", err)
		}
		os.Exit(1)
	}
	logger.Info("quote",
		"sellAmount", quote.SellAmount.String(),
		"buyAmount", quote.BuyAmount.String(),
		"feeAmount", quote.FeeAmount.String())

	order := &cowswap.Order{
		SellToken:        weth,
		BuyToken:         cowToken,
		SellAmount:       big.NewInt(1e16),
		BuyAmount:        quote.BuyAmount,
		ValidTo:          uint32(time.Now().Add(time.Hour).Unix()),
		AppData:          json.RawMessage(`{"appCode":"cowswap-sdk-go example"}`),
		Kind:             cowswap.OrderKindSell,
		SellTokenBalance: cowswap.BalanceERC20,
		BuyTokenBalance:  cowswap.BalanceERC20,
	}

	uid, err := client.PlaceOrder(order, privateKey)
	if err != nil {
		var refusal *cowswap.OrderError
		if errors.As(err, &refusal) {
			logger.Error("order refused", "errorType", refusal.ErrorType, "description", refusal.Description)
		} else {
			logger.Error("place order", "error", err)
		}
		os.Exit(1)
	}
	logger.Info("order placed", "uid", uid.String())

	orders, err := client.GetOrders(uid.Owner())
	if err != nil {
		logger.Error("get orders", "error", err)
		os.Exit(1)
	}
	logger.Info("open orders", "count", len(orders))

	trades, err := client.GetTrades(uid)
	if err != nil {
		logger.Error("get trades", "error", err)
		os.Exit(1)
	}
	for _, trade := range trades {
		logger.Info("trade",
			"blockNumber", trade.BlockNumber,
			"txHash", trade.TxHash,
			"sellAmount", trade.SellAmount,
			"buyAmount", trade.BuyAmount)
	}
}
