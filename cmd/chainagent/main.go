package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/chainagent/chainagent/internal/delegation"
)

var (
	app    = kingpin.New("chainagent", "Delegated DCA spending authorization client")
	server = app.Flag("server", "Server base URL").Default("http://localhost:8080").String()
	caller = app.Flag("caller", "Caller address for authorized operations").String()

	// Permission commands
	grantCmd    = app.Command("grant", "Grant a spending permission")
	grantUser   = grantCmd.Arg("user", "User address").Required().String()
	grantToken  = grantCmd.Flag("token", "Quote token").Default("USDC").String()
	grantDaily  = grantCmd.Flag("daily", "Daily limit in minor units").Required().Int64()
	grantTotal  = grantCmd.Flag("total", "Lifetime limit in minor units").Required().Int64()
	grantDays   = grantCmd.Flag("days", "Duration in days").Default("30").Int64()
	grantDipBps = grantCmd.Flag("dip-bps", "Target dip in basis points").Default("500").Int64()

	permissionCmd  = app.Command("permission", "Show a user's permission")
	permissionUser = permissionCmd.Arg("user", "User address").Required().String()

	revokeCmd  = app.Command("revoke", "Revoke a user's permission")
	revokeUser = revokeCmd.Arg("user", "User address").Required().String()

	quotaCmd  = app.Command("quota", "Show a user's quota state")
	quotaUser = quotaCmd.Arg("user", "User address").Required().String()

	// Delegation commands
	delegateCmd      = app.Command("delegate", "Issue a sub-delegation to an executor")
	delegateUser     = delegateCmd.Arg("user", "User address").Required().String()
	delegateExecutor = delegateCmd.Arg("executor", "Executor address").Default("execution-agent").String()
	delegateAmount   = delegateCmd.Flag("amount", "Delegated daily limit; defaults to a ratio of the permission's daily limit").Int64()
	delegateRatio    = delegateCmd.Flag("ratio-bps", "Ratio of the daily limit when --amount is not given").Default("6000").Int64()

	undelegateCmd      = app.Command("undelegate", "Revoke a sub-delegation")
	undelegateUser     = undelegateCmd.Arg("user", "User address").Required().String()
	undelegateExecutor = undelegateCmd.Arg("executor", "Executor address").Required().String()

	// Execution commands
	executeCmd    = app.Command("execute", "Trigger a swap attempt")
	executeUser   = executeCmd.Arg("user", "User address").Required().String()
	executeAmount = executeCmd.Flag("amount", "Quote amount in minor units").Required().Int64()

	historyCmd = app.Command("history", "Show the execution record log")

	// Price commands
	priceCmd      = app.Command("price", "Price oracle operations")
	priceGetCmd   = priceCmd.Command("get", "Show the current price")
	priceGetToken = priceGetCmd.Arg("token", "Token").Default("ETH").String()

	priceSetCmd   = priceCmd.Command("set", "Set the price")
	priceSetToken = priceSetCmd.Arg("token", "Token").Required().String()
	priceSetValue = priceSetCmd.Arg("price", "Price with 8 implied decimals").Required().Int64()

	priceDipCmd   = priceCmd.Command("dip", "Simulate a price dip")
	priceDipToken = priceDipCmd.Arg("token", "Token").Required().String()
	priceDipBps   = priceDipCmd.Arg("bps", "Dip size in basis points").Required().Int64()

	priceResetCmd   = priceCmd.Command("reset", "Reset the price to the seed value")
	priceResetToken = priceResetCmd.Arg("token", "Token").Required().String()

	// Stats commands
	statsCmd  = app.Command("stats", "Show global or per-user stats")
	statsUser = statsCmd.Arg("user", "User address; omit for global stats").String()

	// Demo
	demoCmd    = app.Command("demo", "Run the full grant/delegate/dip/execute flow")
	demoUser   = demoCmd.Arg("user", "User address").Default("0xdemo").String()
	demoAmount = demoCmd.Flag("amount", "Swap amount in minor units").Default("60000000").Int64()
)

var (
	okColor   = color.New(color.FgGreen)
	infoColor = color.New(color.FgCyan)
	errColor  = color.New(color.FgRed, color.Bold)
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	c := newClient(*server, *caller)

	var err error
	switch command {
	case grantCmd.FullCommand():
		err = runGrant(c)
	case permissionCmd.FullCommand():
		err = printJSON(c, "/permissions/"+*permissionUser)
	case revokeCmd.FullCommand():
		err = c.delete("/permissions/"+*revokeUser, nil)
		if err == nil {
			okColor.Printf("permission revoked for %s\n", *revokeUser)
		}
	case quotaCmd.FullCommand():
		err = printJSON(c, "/permissions/"+*quotaUser+"/quota")
	case delegateCmd.FullCommand():
		err = runDelegate(c, *delegateUser, *delegateExecutor, *delegateAmount, *delegateRatio)
	case undelegateCmd.FullCommand():
		err = c.delete("/delegations/"+*undelegateUser+"/"+*undelegateExecutor, nil)
		if err == nil {
			okColor.Printf("delegation revoked for %s -> %s\n", *undelegateUser, *undelegateExecutor)
		}
	case executeCmd.FullCommand():
		err = runExecute(c, *executeUser, *executeAmount)
	case historyCmd.FullCommand():
		err = printJSON(c, "/swaps")
	case priceGetCmd.FullCommand():
		err = printJSON(c, "/price/"+*priceGetToken)
	case priceSetCmd.FullCommand():
		err = c.post("/price/"+*priceSetToken, map[string]int64{"price": *priceSetValue}, nil)
		if err == nil {
			okColor.Printf("price of %s set to %d\n", *priceSetToken, *priceSetValue)
		}
	case priceDipCmd.FullCommand():
		var out struct {
			Price int64 `json:"price"`
		}
		err = c.post("/price/"+*priceDipToken+"/dip", map[string]int64{"dipBps": *priceDipBps}, &out)
		if err == nil {
			okColor.Printf("%s dipped %d bps, new price %d\n", *priceDipToken, *priceDipBps, out.Price)
		}
	case priceResetCmd.FullCommand():
		err = c.post("/price/"+*priceResetToken+"/reset", nil, nil)
		if err == nil {
			okColor.Printf("price of %s reset\n", *priceResetToken)
		}
	case statsCmd.FullCommand():
		if *statsUser == "" {
			err = printJSON(c, "/stats/global")
		} else {
			err = printJSON(c, "/stats/users/"+*statsUser)
		}
	case demoCmd.FullCommand():
		err = runDemo(c, *demoUser, *demoAmount)
	}

	if err != nil {
		errColor.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(c *client, path string) error {
	var out json.RawMessage
	if err := c.get(path, &out); err != nil {
		return err
	}
	var buf map[string]any
	if err := json.Unmarshal(out, &buf); err != nil {
		// Not an object (e.g. an array); print raw.
		fmt.Println(string(out))
		return nil
	}
	pretty, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func runGrant(c *client) error {
	var out json.RawMessage
	err := c.post("/permissions", map[string]any{
		"user":         *grantUser,
		"token":        *grantToken,
		"dailyLimit":   *grantDaily,
		"totalLimit":   *grantTotal,
		"durationDays": *grantDays,
		"targetDipBps": *grantDipBps,
	}, &out)
	if err != nil {
		return err
	}
	okColor.Printf("permission granted for %s: daily %d, total %d, %d days, dip %d bps\n",
		*grantUser, *grantDaily, *grantTotal, *grantDays, *grantDipBps)
	return nil
}

func runDelegate(c *client, user, executor string, amount, ratioBps int64) error {
	if amount == 0 {
		var perm struct {
			DailyLimit int64 `json:"dailyLimit"`
		}
		if err := c.get("/permissions/"+user, &perm); err != nil {
			return err
		}
		amount = delegation.Slice(perm.DailyLimit, ratioBps)
		infoColor.Printf("delegating %d bps of daily limit %d: %d\n", ratioBps, perm.DailyLimit, amount)
	}
	if err := c.post("/delegations", map[string]any{
		"user":       user,
		"executor":   executor,
		"dailyLimit": amount,
	}, nil); err != nil {
		return err
	}
	okColor.Printf("delegation issued: %s -> %s, daily limit %d\n", user, executor, amount)
	return nil
}

func runExecute(c *client, user string, amount int64) error {
	var res struct {
		Outcome   string          `json:"outcome"`
		Price     int64           `json:"price"`
		DropBps   int64           `json:"dropBps"`
		Requested int64           `json:"requested"`
		Available int64           `json:"available"`
		Record    json.RawMessage `json:"record"`
	}
	if err := c.post("/swaps", map[string]any{"user": user, "amount": amount}, &res); err != nil {
		return err
	}
	switch res.Outcome {
	case "executed":
		okColor.Printf("swap executed at price %d (drop %d bps)\n", res.Price, res.DropBps)
		fmt.Println(string(res.Record))
	case "dip_not_met":
		infoColor.Printf("dip not met: price %d, drop %d bps\n", res.Price, res.DropBps)
	case "quota_exceeded":
		errColor.Printf("quota exceeded: requested %d, available %d\n", res.Requested, res.Available)
	default:
		fmt.Printf("outcome: %s\n", res.Outcome)
	}
	return nil
}

// runDemo walks the whole flow: grant a permission, delegate a slice of
// it to the execution agent, simulate a dip, then trigger a swap.
func runDemo(c *client, user string, amount int64) error {
	infoColor.Println("1. granting permission (daily 100 USDC, total 3000 USDC, 30 days, 5% dip)")
	if err := c.post("/permissions", map[string]any{
		"user":         user,
		"token":        "USDC",
		"dailyLimit":   int64(100_000000),
		"totalLimit":   int64(3000_000000),
		"durationDays": int64(30),
		"targetDipBps": int64(500),
	}, nil); err != nil {
		return err
	}

	infoColor.Println("2. delegating 60% of the daily limit to the execution agent")
	if err := runDelegate(c, user, "execution-agent", 0, 6000); err != nil {
		return err
	}

	infoColor.Println("3. simulating a 5% price dip")
	if err := c.post("/price/ETH/dip", map[string]int64{"dipBps": 500}, nil); err != nil {
		return err
	}

	infoColor.Printf("4. triggering a swap of %d\n", amount)
	return runExecute(c, user, amount)
}
