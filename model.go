package cowswap

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// OrderKind tells which side of the order is fixed.
type OrderKind string

const (
	OrderKindSell OrderKind = "sell"
	OrderKindBuy  OrderKind = "buy"
)

// BalanceSource tells where sell funds are drawn from or buy proceeds
// are delivered to.
type BalanceSource string

const (
	BalanceERC20    BalanceSource = "erc20"
	BalanceInternal BalanceSource = "internal"
	BalanceExternal BalanceSource = "external"
)

// SigningScheme is the method used to produce and verify an order
// signature.
type SigningScheme string

const (
	SigningSchemeEIP712  SigningScheme = "eip712"
	SigningSchemeEthSign SigningScheme = "ethsign"
	SigningSchemePreSign SigningScheme = "presign"
	SigningSchemeEIP1271 SigningScheme = "eip1271"
)

// Order describes a desired exchange. It is built by the caller, has its
// fee filled in by the estimator, and must not change once signed: the
// signature covers every field.
type Order struct {
	SellToken         common.Address
	BuyToken          common.Address
	Receiver          common.Address // zero address means "sender"
	SellAmount        *big.Int
	BuyAmount         *big.Int
	ValidTo           uint32
	AppData           json.RawMessage // opaque metadata document, hashed on the wire
	FeeAmount         *big.Int
	Kind              OrderKind
	PartiallyFillable bool
	SellTokenBalance  BalanceSource
	BuyTokenBalance   BalanceSource
}

// Clone returns a deep copy so estimation can fill amounts without
// touching the caller's instance.
func (o *Order) Clone() *Order {
	dup := *o
	if o.SellAmount != nil {
		dup.SellAmount = new(big.Int).Set(o.SellAmount)
	}
	if o.BuyAmount != nil {
		dup.BuyAmount = new(big.Int).Set(o.BuyAmount)
	}
	if o.FeeAmount != nil {
		dup.FeeAmount = new(big.Int).Set(o.FeeAmount)
	}
	if o.AppData != nil {
		dup.AppData = append(json.RawMessage(nil), o.AppData...)
	}
	return &dup
}

// AppDataHash returns the 32-byte value that represents the appData
// document in the signed digest and on the wire. A document that is
// already a quoted 32-byte hex string is taken verbatim, so orders read
// back from the orderbook round-trip without re-hashing.
func (o *Order) AppDataHash() common.Hash {
	doc := o.AppData
	if len(doc) == 0 {
		doc = json.RawMessage(`{}`)
	}
	var literal string
	if err := json.Unmarshal(doc, &literal); err == nil && has32ByteHexPrefix(literal) {
		return common.HexToHash(literal)
	}
	return HashAppData(doc)
}

func has32ByteHexPrefix(s string) bool {
	if !strings.HasPrefix(s, "0x") || len(s) != 66 {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

type orderJSON struct {
	SellToken         string `json:"sellToken"`
	BuyToken          string `json:"buyToken"`
	Receiver          string `json:"receiver"`
	SellAmount        string `json:"sellAmount"`
	BuyAmount         string `json:"buyAmount"`
	ValidTo           uint32 `json:"validTo"`
	AppData           string `json:"appData"`
	FeeAmount         string `json:"feeAmount"`
	Kind              string `json:"kind"`
	PartiallyFillable bool   `json:"partiallyFillable"`
	SellTokenBalance  string `json:"sellTokenBalance"`
	BuyTokenBalance   string `json:"buyTokenBalance"`
}

// MarshalJSON emits the orderbook wire shape: raw amounts as decimal
// strings, appData as its 32-byte hash.
func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		SellToken:         strings.ToLower(o.SellToken.Hex()),
		BuyToken:          strings.ToLower(o.BuyToken.Hex()),
		Receiver:          strings.ToLower(o.Receiver.Hex()),
		SellAmount:        bigIntString(o.SellAmount),
		BuyAmount:         bigIntString(o.BuyAmount),
		ValidTo:           o.ValidTo,
		AppData:           o.AppDataHash().Hex(),
		FeeAmount:         bigIntString(o.FeeAmount),
		Kind:              string(o.Kind),
		PartiallyFillable: o.PartiallyFillable,
		SellTokenBalance:  string(o.SellTokenBalance),
		BuyTokenBalance:   string(o.BuyTokenBalance),
	})
}

// UnmarshalJSON parses the wire shape back into an Order. The appData
// field comes back as the hash string and is kept as such.
func (o *Order) UnmarshalJSON(data []byte) error {
	var w orderJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	sellAmount, err := parseBigInt("sellAmount", w.SellAmount)
	if err != nil {
		return err
	}
	buyAmount, err := parseBigInt("buyAmount", w.BuyAmount)
	if err != nil {
		return err
	}
	feeAmount, err := parseBigInt("feeAmount", w.FeeAmount)
	if err != nil {
		return err
	}

	appData, err := json.Marshal(w.AppData)
	if err != nil {
		return err
	}

	*o = Order{
		SellToken:         common.HexToAddress(w.SellToken),
		BuyToken:          common.HexToAddress(w.BuyToken),
		Receiver:          common.HexToAddress(w.Receiver),
		SellAmount:        sellAmount,
		BuyAmount:         buyAmount,
		ValidTo:           w.ValidTo,
		AppData:           appData,
		FeeAmount:         feeAmount,
		Kind:              OrderKind(w.Kind),
		PartiallyFillable: w.PartiallyFillable,
		SellTokenBalance:  BalanceSource(w.SellTokenBalance),
		BuyTokenBalance:   BalanceSource(w.BuyTokenBalance),
	}
	return nil
}

func bigIntString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBigInt(field, s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q", field, s)
	}
	return v, nil
}

// SignedOrder is an Order plus the signature that binds it to a signer
// and a settlement domain. Immutable once produced.
type SignedOrder struct {
	Order         *Order
	Signature     []byte // 65 bytes, r ++ s ++ v
	SigningScheme SigningScheme
	From          common.Address
}

// SignatureHex returns the 0x-prefixed 130-hex-char signature.
func (s *SignedOrder) SignatureHex() string {
	return "0x" + hex.EncodeToString(s.Signature)
}

// OrderUIDLength is the byte length of an order identifier:
// orderDigest(32) ++ owner(20) ++ validTo(4).
const OrderUIDLength = 56

// OrderUID is the idempotent handle the orderbook returns on submission.
// It is a pure function of the signed digest, the owner and validTo, so
// it can be reconstructed locally and checked against the service.
type OrderUID [OrderUIDLength]byte

// ComputeOrderUID assembles an order identifier from its parts.
func ComputeOrderUID(digest common.Hash, owner common.Address, validTo uint32) OrderUID {
	var uid OrderUID
	copy(uid[:32], digest.Bytes())
	copy(uid[32:52], owner.Bytes())
	binary.BigEndian.PutUint32(uid[52:], validTo)
	return uid
}

// ParseOrderUID decodes a 0x-prefixed 112-hex-char identifier.
func ParseOrderUID(s string) (OrderUID, error) {
	var uid OrderUID
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return uid, &InvalidParamError{Message: fmt.Sprintf("order uid is not hex: %v", err)}
	}
	if len(raw) != OrderUIDLength {
		return uid, &InvalidParamError{Message: fmt.Sprintf("order uid must be %d bytes, got %d", OrderUIDLength, len(raw))}
	}
	copy(uid[:], raw)
	return uid, nil
}

// String renders the identifier the way the orderbook does: 0x-prefixed
// lower-case hex.
func (u OrderUID) String() string {
	return "0x" + hex.EncodeToString(u[:])
}

// Digest returns the signed order digest embedded in the identifier.
func (u OrderUID) Digest() common.Hash {
	return common.BytesToHash(u[:32])
}

// Owner returns the signer address embedded in the identifier.
func (u OrderUID) Owner() common.Address {
	return common.BytesToAddress(u[32:52])
}

// ValidTo returns the expiry timestamp embedded in the identifier.
func (u OrderUID) ValidTo() uint32 {
	return binary.BigEndian.Uint32(u[52:])
}

// OrderDetail is an order as read back from the orderbook, together
// with the metadata the service attaches.
type OrderDetail struct {
	Order        Order
	UID          string
	Owner        string
	Status       string
	CreationDate string
}

func (d *OrderDetail) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &d.Order); err != nil {
		return err
	}
	var meta struct {
		UID          string `json:"uid"`
		Owner        string `json:"owner"`
		Status       string `json:"status"`
		CreationDate string `json:"creationDate"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}
	d.UID = meta.UID
	d.Owner = meta.Owner
	d.Status = meta.Status
	d.CreationDate = meta.CreationDate
	return nil
}

// ProtocolFee is one protocol fee taken during execution.
type ProtocolFee struct {
	Amount string `json:"amount"`
	Token  string `json:"token"`
}

// Trade is one on-chain execution of an order.
type Trade struct {
	BlockNumber          uint64        `json:"blockNumber"`
	LogIndex             uint64        `json:"logIndex"`
	OrderUID             string        `json:"orderUid"`
	BuyAmount            string        `json:"buyAmount"`
	SellAmount           string        `json:"sellAmount"`
	SellAmountBeforeFees string        `json:"sellAmountBeforeFees"`
	Owner                string        `json:"owner"`
	BuyToken             string        `json:"buyToken"`
	SellToken            string        `json:"sellToken"`
	TxHash               string        `json:"txHash"`
	ExecutedProtocolFees []ProtocolFee `json:"executedProtocolFees"`
}

// QuoteRequest asks the orderbook to price one side of a prospective
// order. Exactly one of the amount fields is sent, selected by Kind.
type QuoteRequest struct {
	SellToken common.Address
	BuyToken  common.Address
	From      common.Address
	Kind      OrderKind
	// SellAmountBeforeFee is the fixed amount for sell orders.
	SellAmountBeforeFee *big.Int
	// BuyAmountAfterFee is the fixed amount for buy orders.
	BuyAmountAfterFee *big.Int
}

func (q QuoteRequest) MarshalJSON() ([]byte, error) {
	w := map[string]interface{}{
		"sellToken": strings.ToLower(q.SellToken.Hex()),
		"buyToken":  strings.ToLower(q.BuyToken.Hex()),
		"from":      strings.ToLower(q.From.Hex()),
		"kind":      string(q.Kind),
	}
	switch q.Kind {
	case OrderKindSell:
		w["sellAmountBeforeFee"] = bigIntString(q.SellAmountBeforeFee)
	case OrderKindBuy:
		w["buyAmountAfterFee"] = bigIntString(q.BuyAmountAfterFee)
	default:
		return nil, &InvalidParamError{Message: fmt.Sprintf("invalid order kind: %q", q.Kind)}
	}
	return json.Marshal(w)
}

// Quote is a successful estimation: raw base-unit amounts for both
// sides plus the fee, never partially valid.
type Quote struct {
	SellToken  common.Address
	BuyToken   common.Address
	SellAmount *big.Int
	BuyAmount  *big.Int
	FeeAmount  *big.Int
	ValidTo    uint32
	Kind       OrderKind
}

func (q *Quote) UnmarshalJSON(data []byte) error {
	var w struct {
		SellToken  string `json:"sellToken"`
		BuyToken   string `json:"buyToken"`
		SellAmount string `json:"sellAmount"`
		BuyAmount  string `json:"buyAmount"`
		FeeAmount  string `json:"feeAmount"`
		ValidTo    uint32 `json:"validTo"`
		Kind       string `json:"kind"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	sellAmount, err := parseBigInt("sellAmount", w.SellAmount)
	if err != nil {
		return err
	}
	buyAmount, err := parseBigInt("buyAmount", w.BuyAmount)
	if err != nil {
		return err
	}
	feeAmount, err := parseBigInt("feeAmount", w.FeeAmount)
	if err != nil {
		return err
	}

	*q = Quote{
		SellToken:  common.HexToAddress(w.SellToken),
		BuyToken:   common.HexToAddress(w.BuyToken),
		SellAmount: sellAmount,
		BuyAmount:  buyAmount,
		FeeAmount:  feeAmount,
		ValidTo:    w.ValidTo,
		Kind:       OrderKind(w.Kind),
	}
	return nil
}
