package chaintools

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/avelios/maestro/pkg/toolregistry"
)

// MaxSwapAmount is the simulated liquidity ceiling for token_swap.
const MaxSwapAmount = 1_000_000

var addressPattern = "^0x[a-fA-F0-9]{40}$"

// Options configures bundled tool registration.
type Options struct {
	Logger  zerolog.Logger
	Network string // default "mainnet"
}

// Register installs the bundled simulated on-chain tools.
func Register(registry *toolregistry.Registry, opts Options) error {
	if registry == nil {
		return errors.New("tool registry is required")
	}
	if opts.Network == "" {
		opts.Network = "mainnet"
	}

	tools := []toolregistry.Tool{
		walletTransferTool(opts),
		walletBalanceTool(opts),
		tokenSwapTool(opts),
		contractCallTool(opts),
		gasEstimateTool(opts),
	}

	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
		opts.Logger.Debug().
			Str("tool", tool.Name).
			Str("category", tool.Category).
			Msg("Registered chain tool")
	}
	return nil
}

func walletTransferTool(opts Options) toolregistry.Tool {
	return toolregistry.Tool{
		Name:        "wallet_transfer",
		Description: "Transfer tokens from the active wallet to a recipient address.",
		Category:    "wallet",
		Version:     "1.0.0",
		Parameters: map[string]toolregistry.ParameterSpec{
			"to":     {Type: "string", Description: "Recipient address", Required: true, Pattern: addressPattern},
			"amount": {Type: "number", Description: "Amount to transfer", Required: true, Minimum: float64Ptr(0)},
			"token":  {Type: "string", Description: "Token symbol (default ETH)", Default: "ETH"},
			"memo":   {Type: "string", Description: "Optional transfer memo"},
		},
		Examples: []string{
			`{"to": "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", "amount": 0.5}`,
			`{"to": "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", "amount": 100, "token": "USDC"}`,
		},
		Validate: func(payload map[string]interface{}) *toolregistry.ValidationResult {
			result := &toolregistry.ValidationResult{Valid: true}
			if amount, ok := payload["amount"].(float64); ok && amount <= 0 {
				result.Valid = false
				result.Errors = append(result.Errors, "amount must be greater than zero")
			}
			return result
		},
		Execute: func(ctx context.Context, payload map[string]interface{}, userID string) (*toolregistry.ToolResult, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			to, _ := payload["to"].(string)
			amount, _ := payload["amount"].(float64)
			token := stringOrDefault(payload["token"], "ETH")

			txID, err := newTxID()
			if err != nil {
				return nil, err
			}

			return &toolregistry.ToolResult{
				Action:  "wallet_transfer",
				Status:  "success",
				Message: fmt.Sprintf("Transferred %g %s to %s", amount, token, to),
				Data: map[string]interface{}{
					"txId":    txID,
					"to":      to,
					"amount":  amount,
					"token":   token,
					"network": opts.Network,
					"from":    userID,
				},
			}, nil
		},
	}
}

func walletBalanceTool(opts Options) toolregistry.Tool {
	return toolregistry.Tool{
		Name:        "wallet_balance",
		Description: "Look up the token balance of a wallet address.",
		Category:    "wallet",
		Version:     "1.0.0",
		Parameters: map[string]toolregistry.ParameterSpec{
			"address": {Type: "string", Description: "Wallet address", Required: true, Pattern: addressPattern},
			"token":   {Type: "string", Description: "Token symbol", Enum: []string{"ETH", "USDC", "DAI", "WBTC"}, Default: "ETH"},
		},
		Examples: []string{
			`{"address": "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"}`,
		},
		Execute: func(ctx context.Context, payload map[string]interface{}, userID string) (*toolregistry.ToolResult, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			address, _ := payload["address"].(string)
			token := stringOrDefault(payload["token"], "ETH")
			balance := pseudoBalance(address, token)

			return &toolregistry.ToolResult{
				Action:  "wallet_balance",
				Status:  "success",
				Message: fmt.Sprintf("Balance of %s: %g %s", address, balance, token),
				Data: map[string]interface{}{
					"address": address,
					"token":   token,
					"balance": balance,
					"network": opts.Network,
				},
			}, nil
		},
	}
}

func tokenSwapTool(opts Options) toolregistry.Tool {
	return toolregistry.Tool{
		Name:        "token_swap",
		Description: "Swap one token for another at the simulated market rate.",
		Category:    "defi",
		Version:     "1.0.0",
		Parameters: map[string]toolregistry.ParameterSpec{
			"fromToken":   {Type: "string", Description: "Token to sell", Required: true},
			"toToken":     {Type: "string", Description: "Token to buy", Required: true},
			"amount":      {Type: "number", Description: "Amount of fromToken to swap", Required: true, Minimum: float64Ptr(0)},
			"slippageBps": {Type: "number", Description: "Allowed slippage in basis points", Minimum: float64Ptr(0), Maximum: float64Ptr(10000), Default: 50},
		},
		Examples: []string{
			`{"fromToken": "ETH", "toToken": "USDC", "amount": 1.5}`,
			`{"fromToken": "USDC", "toToken": "DAI", "amount": 1000, "slippageBps": 30}`,
		},
		Validate: func(payload map[string]interface{}) *toolregistry.ValidationResult {
			result := &toolregistry.ValidationResult{Valid: true}

			from, _ := payload["fromToken"].(string)
			to, _ := payload["toToken"].(string)
			if from != "" && strings.EqualFold(from, to) {
				result.Valid = false
				result.Errors = append(result.Errors, "fromToken and toToken must differ")
			}
			if amount, ok := payload["amount"].(float64); ok && amount <= 0 {
				result.Valid = false
				result.Errors = append(result.Errors, "amount must be greater than zero")
			}
			return result
		},
		Execute: func(ctx context.Context, payload map[string]interface{}, userID string) (*toolregistry.ToolResult, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			from, _ := payload["fromToken"].(string)
			to, _ := payload["toToken"].(string)
			amount, _ := payload["amount"].(float64)
			slippageBps := numberOrDefault(payload["slippageBps"], 50)

			if amount > MaxSwapAmount {
				return &toolregistry.ToolResult{
					Action: "token_swap",
					Status: "error",
					Error:  fmt.Sprintf("insufficient liquidity to swap %g %s", amount, from),
				}, nil
			}

			txID, err := newTxID()
			if err != nil {
				return nil, err
			}

			rate := pseudoRate(from, to)
			amountOut := amount * rate * (1 - slippageBps/10000)

			return &toolregistry.ToolResult{
				Action:  "token_swap",
				Status:  "success",
				Message: fmt.Sprintf("Swapped %g %s for %g %s", amount, from, amountOut, to),
				Data: map[string]interface{}{
					"txId":        txID,
					"fromToken":   from,
					"toToken":     to,
					"amountIn":    amount,
					"amountOut":   amountOut,
					"rate":        rate,
					"slippageBps": slippageBps,
					"network":     opts.Network,
				},
			}, nil
		},
	}
}

func contractCallTool(opts Options) toolregistry.Tool {
	return toolregistry.Tool{
		Name:        "contract_call",
		Description: "Invoke a method on a deployed smart contract.",
		Category:    "contract",
		Version:     "1.0.0",
		Parameters: map[string]toolregistry.ParameterSpec{
			"contractAddress": {Type: "string", Description: "Contract address", Required: true, Pattern: addressPattern},
			"method":          {Type: "string", Description: "Method name", Required: true, Pattern: "^[a-zA-Z_][a-zA-Z0-9_]*$"},
			"args":            {Type: "array", Description: "Method arguments"},
			"value":           {Type: "number", Description: "ETH value to send", Minimum: float64Ptr(0)},
		},
		Examples: []string{
			`{"contractAddress": "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", "method": "approve", "args": ["0xabc", 1000]}`,
		},
		Execute: func(ctx context.Context, payload map[string]interface{}, userID string) (*toolregistry.ToolResult, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			address, _ := payload["contractAddress"].(string)
			method, _ := payload["method"].(string)
			args, _ := payload["args"].([]interface{})

			txID, err := newTxID()
			if err != nil {
				return nil, err
			}

			return &toolregistry.ToolResult{
				Action:  "contract_call",
				Status:  "success",
				Message: fmt.Sprintf("Called %s.%s", address, method),
				Data: map[string]interface{}{
					"txId":            txID,
					"contractAddress": address,
					"method":          method,
					"argCount":        len(args),
					"returnValue":     fmt.Sprintf("0x%016x", pseudoWord(address+method)),
					"network":         opts.Network,
				},
			}, nil
		},
	}
}

func gasEstimateTool(opts Options) toolregistry.Tool {
	return toolregistry.Tool{
		Name:        "gas_estimate",
		Description: "Estimate gas cost for an on-chain operation.",
		Category:    "gas",
		Version:     "1.0.0",
		Parameters: map[string]toolregistry.ParameterSpec{
			"operation": {Type: "string", Description: "Operation kind", Required: true, Enum: []string{"transfer", "swap", "contract_call", "deploy"}},
			"priority":  {Type: "string", Description: "Inclusion priority", Enum: []string{"low", "standard", "fast"}, Default: "standard"},
		},
		Examples: []string{
			`{"operation": "transfer"}`,
			`{"operation": "swap", "priority": "fast"}`,
		},
		Execute: func(ctx context.Context, payload map[string]interface{}, userID string) (*toolregistry.ToolResult, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			operation, _ := payload["operation"].(string)
			priority := stringOrDefault(payload["priority"], "standard")

			gasLimit := baseGas(operation)
			gasPriceGwei := priorityGwei(priority)
			costEth := float64(gasLimit) * gasPriceGwei / 1e9

			return &toolregistry.ToolResult{
				Action:  "gas_estimate",
				Status:  "success",
				Message: fmt.Sprintf("Estimated %d gas at %g gwei", gasLimit, gasPriceGwei),
				Data: map[string]interface{}{
					"operation":        operation,
					"priority":         priority,
					"gasLimit":         gasLimit,
					"gasPriceGwei":     gasPriceGwei,
					"estimatedCostEth": costEth,
					"network":          opts.Network,
				},
			}, nil
		},
	}
}

func newTxID() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate transaction id: %w", err)
	}
	return "tx_" + id, nil
}

// pseudoBalance derives a stable fake balance from the address and token.
func pseudoBalance(address, token string) float64 {
	return float64(pseudoWord(strings.ToLower(address)+":"+token)%100_000_000) / 10_000
}

// pseudoRate derives a stable fake exchange rate from the token pair.
func pseudoRate(from, to string) float64 {
	word := pseudoWord(strings.ToUpper(from) + "/" + strings.ToUpper(to))
	return float64(word%1_000_000)/10_000 + 0.0001
}

func pseudoWord(seed string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(seed))
	return h.Sum64()
}

func baseGas(operation string) int {
	switch operation {
	case "transfer":
		return 21_000
	case "swap":
		return 180_000
	case "contract_call":
		return 90_000
	case "deploy":
		return 1_200_000
	default:
		return 50_000
	}
}

func priorityGwei(priority string) float64 {
	switch priority {
	case "low":
		return 8
	case "fast":
		return 40
	default:
		return 20
	}
}

func stringOrDefault(value interface{}, fallback string) string {
	if s, ok := value.(string); ok && s != "" {
		return s
	}
	return fallback
}

func numberOrDefault(value interface{}, fallback float64) float64 {
	if f, ok := value.(float64); ok {
		return f
	}
	return fallback
}

func float64Ptr(v float64) *float64 {
	return &v
}
