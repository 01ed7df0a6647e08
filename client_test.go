package cowswap_test

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	cowswap "github.com/sophon-org/cowswap-sdk-go"
)

// Well-known development key, never funded.
const (
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testOwnerHex   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var (
	gnoToken  = common.HexToAddress("0x6810e776880C02933D47DB1b9fc05908e5386b96")
	wethToken = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

func newTestClient(t *testing.T, handler http.Handler) *cowswap.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := cowswap.NewClient(cowswap.ClientConfig{
		Network:    cowswap.NetworkMainnet,
		APIBaseURL: server.URL,
	})
	require.NoError(t, err)
	return client
}

func sellOrder() *cowswap.Order {
	return &cowswap.Order{
		SellToken:        gnoToken,
		BuyToken:         wethToken,
		SellAmount:       big.NewInt(1000000000000000000),
		BuyAmount:        big.NewInt(300000000000000000),
		ValidTo:          uint32(time.Now().Add(time.Hour).Unix()),
		AppData:          json.RawMessage(`{"version":"1.2.2","metadata":{}}`),
		FeeAmount:        big.NewInt(5000000000000),
		Kind:             cowswap.OrderKindSell,
		SellTokenBalance: cowswap.BalanceERC20,
		BuyTokenBalance:  cowswap.BalanceERC20,
	}
}

func requireSameTokenRefusal(t *testing.T, err error) {
	t.Helper()
	var refusal *cowswap.OrderError
	require.ErrorAs(t, err, &refusal)
	require.Equal(t, cowswap.ErrorTypeSameBuyAndSellToken, refusal.ErrorType)
	require.Equal(t, "Buy token is the same as the sell token.", refusal.Description)
}

func TestNewClientRejectsUnsupportedNetwork(t *testing.T) {
	for _, network := range []cowswap.Network{
		cowswap.NetworkPolygon,
		cowswap.NetworkOptimism,
		cowswap.Network(1337),
	} {
		_, err := cowswap.NewClient(cowswap.ClientConfig{Network: network})
		require.ErrorIs(t, err, cowswap.ErrUnsupportedNetwork, "network %d", network)
	}
}

func TestSameTokenRefusedOnEveryEntryPoint(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("same-token requests must be refused before any round-trip")
	}))

	order := sellOrder()
	order.BuyToken = order.SellToken
	owner := common.HexToAddress(testOwnerHex)

	_, err := client.GetEstimatedAmount(order.SellToken, order.BuyToken, cowswap.OrderKindSell, big.NewInt(1e18))
	requireSameTokenRefusal(t, err)

	_, err = client.GetFee(order, owner)
	requireSameTokenRefusal(t, err)

	_, err = client.EstimateFee(order, owner)
	requireSameTokenRefusal(t, err)

	order.FeeAmount = big.NewInt(0) // force the estimation path
	_, err = client.PlaceOrder(order, testPrivateKey)
	requireSameTokenRefusal(t, err)
}

func TestGetEstimatedAmountRatio(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quote", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, strings.ToLower(gnoToken.Hex()), req["sellToken"])
		require.Equal(t, strings.ToLower(wethToken.Hex()), req["buyToken"])
		require.Equal(t, "sell", req["kind"])
		require.Equal(t, "1000000000000000000", req["sellAmountBeforeFee"])
		_, hasBuy := req["buyAmountAfterFee"]
		require.False(t, hasBuy, "sell quotes must not carry a buy amount")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"sellToken":  req["sellToken"],
			"buyToken":   req["buyToken"],
			"sellAmount": "1000000000000000000",
			"buyAmount":  "300000000000000000",
			"feeAmount":  "5000000000000",
			"kind":       "sell",
		})
	}))

	quote, err := client.GetEstimatedAmount(gnoToken, wethToken, cowswap.OrderKindSell, big.NewInt(1e18))
	require.NoError(t, err)

	ratio, _ := new(big.Float).Quo(
		new(big.Float).SetInt(quote.BuyAmount),
		new(big.Float).SetInt(quote.SellAmount),
	).Float64()
	require.Greater(t, ratio, 0.0)
	require.Less(t, ratio, 1.0)
}

func TestEstimateFeeReturnsCopy(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sellAmount": "1000000000000000000",
			"buyAmount":  "300000000000000000",
			"feeAmount":  "7000000000000",
			"kind":       "sell",
		})
	}))

	order := sellOrder()
	order.FeeAmount = big.NewInt(0)
	order.BuyAmount = big.NewInt(0)

	estimated, err := client.EstimateFee(order, common.HexToAddress(testOwnerHex))
	require.NoError(t, err)

	require.Equal(t, big.NewInt(7000000000000), estimated.FeeAmount)
	require.Equal(t, big.NewInt(300000000000000000), estimated.BuyAmount,
		"an unset counter-side amount is filled from the quote")

	// The caller's order is untouched.
	require.Zero(t, order.FeeAmount.Sign())
	require.Zero(t, order.BuyAmount.Sign())
}

func TestEstimateFeeKeepsLimitAmount(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sellAmount": "1000000000000000000",
			"buyAmount":  "300000000000000000",
			"feeAmount":  "7000000000000",
			"kind":       "sell",
		})
	}))

	order := sellOrder() // BuyAmount set by the caller
	estimated, err := client.EstimateFee(order, common.HexToAddress(testOwnerHex))
	require.NoError(t, err)

	require.Equal(t, order.BuyAmount, estimated.BuyAmount,
		"a caller-set limit amount must survive estimation")
}

func TestPlaceOrderRoundTrip(t *testing.T) {
	var expectedUID string

	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		signature, _ := body["signature"].(string)
		require.Len(t, signature, 132, "signature must be 0x plus 130 hex chars")
		require.True(t, strings.HasPrefix(signature, "0x"))
		require.Equal(t, "eip712", body["signingScheme"])
		require.Equal(t, strings.ToLower(testOwnerHex), body["from"])

		appData, _ := body["appData"].(string)
		require.Len(t, appData, 66, "appData must travel as its 32-byte hash")

		require.Equal(t, "1000000000000000000", body["sellAmount"])
		require.Equal(t, "sell", body["kind"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(expectedUID)
	})

	client := newTestClient(t, mux)
	order := sellOrder() // fee preset: no estimation round-trip

	signed, err := client.SignOrder(order, testPrivateKey)
	require.NoError(t, err)
	localUID, err := client.OrderUIDOf(signed)
	require.NoError(t, err)
	expectedUID = localUID.String()

	uid, err := client.PlaceOrder(order, testPrivateKey)
	require.NoError(t, err)

	require.Equal(t, localUID, uid,
		"the returned identifier must match the locally reconstructed one")
	require.Equal(t, common.HexToAddress(testOwnerHex), uid.Owner())
	require.Equal(t, order.ValidTo, uid.ValidTo())
	require.Len(t, uid.String(), 114)
}

func TestPlaceOrderEstimatesFeeWhenUnset(t *testing.T) {
	var expectedUID string

	mux := http.NewServeMux()
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sellAmount": "1000000000000000000",
			"buyAmount":  "300000000000000000",
			"feeAmount":  "9000000000000",
			"kind":       "sell",
		})
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "9000000000000", mustField(t, r, "feeAmount"))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(expectedUID)
	})

	client := newTestClient(t, mux)
	owner := common.HexToAddress(testOwnerHex)

	order := sellOrder()
	order.FeeAmount = big.NewInt(0)

	estimated, err := client.EstimateFee(order, owner)
	require.NoError(t, err)
	signed, err := client.SignOrder(estimated, testPrivateKey)
	require.NoError(t, err)
	localUID, err := client.OrderUIDOf(signed)
	require.NoError(t, err)
	expectedUID = localUID.String()

	uid, err := client.PlaceOrder(order, testPrivateKey)
	require.NoError(t, err)
	require.Equal(t, localUID, uid)

	// The caller's order keeps its zero fee.
	require.Zero(t, order.FeeAmount.Sign())
}

// mustField re-reads one string field from a submitted order body.
func mustField(t *testing.T, r *http.Request, field string) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	value, _ := body[field].(string)
	return value
}

func TestPlaceOrderRefusal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"errorType":   "InsufficientFee",
			"description": "The signed fee is insufficient.",
		})
	})

	client := newTestClient(t, mux)

	_, err := client.PlaceOrder(sellOrder(), testPrivateKey)

	refusal, ok := cowswap.IsOrderError(err)
	require.True(t, ok)
	require.Equal(t, "InsufficientFee", refusal.ErrorType)
}

func TestPlaceOrderDetectsUIDMismatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		foreign := strings.Repeat("ab", 56)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode("0x" + foreign)
	})

	client := newTestClient(t, mux)

	_, err := client.PlaceOrder(sellOrder(), testPrivateKey)
	require.Error(t, err)
	_, isRefusal := cowswap.IsOrderError(err)
	require.False(t, isRefusal, "a uid mismatch is a fault, not a protocol refusal")
}

func TestGetOrdersEmptyIsIdempotent(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/orders", r.URL.Path)
		require.Equal(t, strings.ToLower(testOwnerHex), r.URL.Query().Get("owner"))
		w.Write([]byte("[]"))
	}))

	owner := common.HexToAddress(testOwnerHex)
	for i := 0; i < 3; i++ {
		orders, err := client.GetOrders(owner)
		require.NoError(t, err)
		require.NotNil(t, orders)
		require.Empty(t, orders)
	}
	require.Equal(t, 3, calls)
}

func TestGetOrdersParsesDetails(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{
			"sellToken": "0x6810e776880c02933d47db1b9fc05908e5386b96",
			"buyToken": "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
			"receiver": "0x0000000000000000000000000000000000000000",
			"sellAmount": "1000000000000000000",
			"buyAmount": "300000000000000000",
			"validTo": 1700000000,
			"appData": "0xb48d38f93eaa084033fc5970bf96e559c33c4cdc07d889ab00b4d63f9590739d",
			"feeAmount": "5000000000000",
			"kind": "sell",
			"partiallyFillable": false,
			"sellTokenBalance": "erc20",
			"buyTokenBalance": "erc20",
			"uid": "0x65f1206182c77a040ed41d507b59c622fa94ab5e71cca567202cff3909f3d5c4dbe338e45276630fd8237149dd47ee027af26f9c619723d0",
			"owner": "0xdbe338e45276630fd8237149dd47ee027af26f9c",
			"status": "fulfilled",
			"creationDate": "2021-11-16T18:05:20Z"
		}]`))
	}))

	orders, err := client.GetOrders(common.HexToAddress(testOwnerHex))
	require.NoError(t, err)
	require.Len(t, orders, 1)

	detail := orders[0]
	require.Equal(t, gnoToken, detail.Order.SellToken)
	require.Equal(t, wethToken, detail.Order.BuyToken)
	require.Equal(t, "1000000000000000000", detail.Order.SellAmount.String())
	require.Equal(t, cowswap.OrderKindSell, detail.Order.Kind)
	require.Equal(t, "fulfilled", detail.Status)
	require.Equal(t, "0xdbe338e45276630fd8237149dd47ee027af26f9c", detail.Owner)
}

func TestGetOrderByUID(t *testing.T) {
	uid, err := cowswap.ParseOrderUID("0x65f1206182c77a040ed41d507b59c622fa94ab5e71cca567202cff3909f3d5c4dbe338e45276630fd8237149dd47ee027af26f9c619723d0")
	require.NoError(t, err)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders/"+uid.String(), r.URL.Path)
		w.Write([]byte(`{
			"sellToken": "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
			"buyToken": "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
			"receiver": "0x0000000000000000000000000000000000000000",
			"sellAmount": "113521821882",
			"buyAmount": "28361861093850079821",
			"validTo": 1637295056,
			"appData": "0xb48d38f93eaa084033fc5970bf96e559c33c4cdc07d889ab00b4d63f9590739d",
			"feeAmount": "56450951",
			"kind": "sell",
			"partiallyFillable": false,
			"sellTokenBalance": "erc20",
			"buyTokenBalance": "erc20",
			"uid": "` + uid.String() + `",
			"owner": "0xdbe338e45276630fd8237149dd47ee027af26f9c",
			"status": "fulfilled",
			"creationDate": "2021-11-18T10:15:17Z"
		}`))
	}))

	detail, err := client.GetOrder(uid)
	require.NoError(t, err)
	require.Equal(t, uid.String(), detail.UID)
	require.Equal(t, uid.ValidTo(), detail.Order.ValidTo)
	require.Equal(t, "fulfilled", detail.Status)
	require.Equal(t, "113521821882", detail.Order.SellAmount.String())
}

func TestGetTradesHistoricalFixture(t *testing.T) {
	uid, err := cowswap.ParseOrderUID("0x65F1206182C77A040ED41D507B59C622FA94AB5E71CCA567202CFF3909F3D5C4DBE338E45276630FD8237149DD47EE027AF26F9C619723D0")
	require.NoError(t, err)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/trades", r.URL.Path)
		require.Equal(t, uid.String(), r.URL.Query().Get("orderUid"))
		w.Write([]byte(`[{
			"blockNumber": 13643462,
			"logIndex": 0,
			"orderUid": "0x65f1206182c77a040ed41d507b59c622fa94ab5e71cca567202cff3909f3d5c4dbe338e45276630fd8237149dd47ee027af26f9c619723d0",
			"buyAmount": "28361861093850079821",
			"sellAmount": "113521821882",
			"sellAmountBeforeFees": "113465370931",
			"owner": "0xdbe338e45276630fd8237149dd47ee027af26f9c",
			"buyToken": "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
			"sellToken": "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
			"txHash": "0x691d1a8ba39c036e841b6e2ed970f9068ac4a27b61955afb852f11019f2ff4d8",
			"executedProtocolFees": []
		}]`))
	}))

	trades, err := client.GetTrades(uid)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	trade := trades[0]
	require.Equal(t, uint64(13643462), trade.BlockNumber)
	require.Equal(t, uint64(0), trade.LogIndex)
	require.Equal(t, uid.String(), trade.OrderUID)
	require.Equal(t, "28361861093850079821", trade.BuyAmount)
	require.Equal(t, "113521821882", trade.SellAmount)
	require.Equal(t, "113465370931", trade.SellAmountBeforeFees)
	require.Equal(t, "0xdbe338e45276630fd8237149dd47ee027af26f9c", trade.Owner)
	require.Equal(t, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", trade.BuyToken)
	require.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", trade.SellToken)
	require.Equal(t, "0x691d1a8ba39c036e841b6e2ed970f9068ac4a27b61955afb852f11019f2ff4d8", trade.TxHash)
	require.Empty(t, trade.ExecutedProtocolFees)
}

func TestGetTradesEmptyForUnexecutedOrder(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))

	order := sellOrder()
	signed, err := client.SignOrder(order, testPrivateKey)
	require.NoError(t, err)
	uid, err := client.OrderUIDOf(signed)
	require.NoError(t, err)

	trades, err := client.GetTrades(uid)
	require.NoError(t, err)
	require.NotNil(t, trades)
	require.Empty(t, trades)
}

func TestSignOrderRejectsExpired(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	order := sellOrder()
	order.ValidTo = uint32(time.Now().Add(-time.Minute).Unix())

	_, err := client.SignOrder(order, testPrivateKey)
	require.Error(t, err)
}

func TestTransportErrorsPassThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client, err := cowswap.NewClient(cowswap.ClientConfig{
		Network:    cowswap.NetworkMainnet,
		APIBaseURL: server.URL,
	})
	require.NoError(t, err)
	server.Close()

	_, err = client.GetOrders(common.HexToAddress(testOwnerHex))
	require.Error(t, err)

	var refusal *cowswap.OrderError
	require.False(t, errors.As(err, &refusal),
		"connectivity failures must not be masked as protocol refusals")
}
