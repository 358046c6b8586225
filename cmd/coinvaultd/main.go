package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/coinvault-network/coinvault-daemon/internal/config"
	"github.com/coinvault-network/coinvault-daemon/internal/core/application"
)

func main() {
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	app := &cli.App{
		Name:  "coinvaultd",
		Usage: "deterministic multisignature wallet vault",
		Commands: []*cli.Command{
			createCmd, keychainCmd, accountCmd, addressCmd, balanceCmd, txCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("command failed")
	}
}

func openVault(create bool) (*application.VaultService, error) {
	network, err := config.GetNetwork()
	if err != nil {
		return nil, err
	}
	svc := application.NewVaultService(network)
	if create {
		if err := svc.Create(config.GetDbDir()); err != nil {
			return nil, err
		}
		return svc, nil
	}
	if err := svc.Open(config.GetDbDir()); err != nil {
		return nil, err
	}
	return svc, nil
}

var createCmd = &cli.Command{
	Name:  "create",
	Usage: "initialize a fresh vault in the datadir",
	Action: func(c *cli.Context) error {
		svc, err := openVault(true)
		if err != nil {
			return err
		}
		defer svc.Close()
		fmt.Println("vault created")
		return nil
	},
}

var keychainCmd = &cli.Command{
	Name:  "keychain",
	Usage: "manage keychains",
	Subcommands: []*cli.Command{
		{
			Name:  "new",
			Usage: "create a root keychain from a fresh mnemonic",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Required: true},
				&cli.StringFlag{Name: "lockkey"},
			},
			Action: func(c *cli.Context) error {
				svc, err := openVault(false)
				if err != nil {
					return err
				}
				defer svc.Close()

				mnemonic, err := application.GenerateMnemonic(256)
				if err != nil {
					return err
				}
				if err := svc.NewKeychainFromMnemonic(
					context.Background(), c.String("name"), mnemonic,
					lockKeyBytes(c),
				); err != nil {
					return err
				}
				fmt.Println("write down the mnemonic, it is not stored:")
				fmt.Println(strings.Join(mnemonic, " "))
				return nil
			},
		},
		{
			Name:  "import",
			Usage: "import a keychain from an extended key",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Required: true},
				&cli.StringFlag{Name: "extkey", Required: true},
				&cli.StringFlag{Name: "lockkey"},
			},
			Action: func(c *cli.Context) error {
				svc, err := openVault(false)
				if err != nil {
					return err
				}
				defer svc.Close()
				return svc.ImportKeychainExtendedKey(
					context.Background(), c.String("name"), c.String("extkey"),
					lockKeyBytes(c),
				)
			},
		},
		{
			Name:  "export",
			Usage: "export the extended key of a keychain",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Required: true},
				&cli.BoolFlag{Name: "private"},
			},
			Action: func(c *cli.Context) error {
				svc, err := openVault(false)
				if err != nil {
					return err
				}
				defer svc.Close()
				extKey, err := svc.ExportKeychainExtendedKey(
					context.Background(), c.String("name"), c.Bool("private"),
				)
				if err != nil {
					return err
				}
				fmt.Println(extKey)
				return nil
			},
		},
		{
			Name:  "list",
			Usage: "list keychains",
			Action: func(c *cli.Context) error {
				svc, err := openVault(false)
				if err != nil {
					return err
				}
				defer svc.Close()
				keychains, err := svc.ListKeychains(context.Background(), false)
				if err != nil {
					return err
				}
				for _, keychain := range keychains {
					fmt.Printf(
						"%s\t%s\tprivate=%v\tlocked=%v\n",
						keychain.Name, keychain.Hash, keychain.IsPrivate,
						keychain.IsLocked,
					)
				}
				return nil
			},
		},
	},
}

var accountCmd = &cli.Command{
	Name:  "account",
	Usage: "manage accounts",
	Subcommands: []*cli.Command{
		{
			Name:  "new",
			Usage: "create an account over a set of keychains",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Required: true},
				&cli.UintFlag{Name: "minsigs", Value: 1},
				&cli.StringSliceFlag{Name: "keychain", Required: true},
			},
			Action: func(c *cli.Context) error {
				svc, err := openVault(false)
				if err != nil {
					return err
				}
				defer svc.Close()
				return svc.NewAccount(
					context.Background(), c.String("name"),
					uint32(c.Uint("minsigs")), c.StringSlice("keychain"),
					uint32(config.GetInt(config.UnusedPoolSizeKey)),
					time.Now().Unix(),
				)
			},
		},
		{
			Name:  "list",
			Usage: "list accounts",
			Action: func(c *cli.Context) error {
				svc, err := openVault(false)
				if err != nil {
					return err
				}
				defer svc.Close()
				accounts, err := svc.ListAccounts(context.Background())
				if err != nil {
					return err
				}
				for _, account := range accounts {
					fmt.Printf(
						"%s\t%d-of-%d\t%s\n",
						account.Name, account.MinSigs, len(account.KeychainNames),
						strings.Join(account.KeychainNames, ","),
					)
				}
				return nil
			},
		},
		{
			Name:  "delete",
			Usage: "delete an account",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Required: true},
			},
			Action: func(c *cli.Context) error {
				svc, err := openVault(false)
				if err != nil {
					return err
				}
				defer svc.Close()
				return svc.DeleteAccount(context.Background(), c.String("name"))
			},
		},
		{
			Name:  "export",
			Usage: "export an account bundle",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Required: true},
				&cli.StringFlag{Name: "path", Required: true},
			},
			Action: func(c *cli.Context) error {
				svc, err := openVault(false)
				if err != nil {
					return err
				}
				defer svc.Close()
				return svc.ExportAccount(
					context.Background(), c.String("name"), c.String("name"),
					c.String("path"),
				)
			},
		},
		{
			Name:  "import",
			Usage: "import an account bundle",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Required: true},
				&cli.StringFlag{Name: "path", Required: true},
				&cli.StringFlag{Name: "lockkey"},
			},
			Action: func(c *cli.Context) error {
				svc, err := openVault(false)
				if err != nil {
					return err
				}
				defer svc.Close()
				return svc.ImportAccount(
					context.Background(), c.String("name"), c.String("path"),
					lockKeyBytes(c),
				)
			},
		},
	},
}

var addressCmd = &cli.Command{
	Name:  "address",
	Usage: "issue a new address for an account",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "account", Required: true},
		&cli.StringFlag{Name: "label"},
	},
	Action: func(c *cli.Context) error {
		svc, err := openVault(false)
		if err != nil {
			return err
		}
		defer svc.Close()
		address, script, err := svc.IssueNewScript(
			context.Background(), c.String("account"), c.String("label"),
		)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", address, hex.EncodeToString(script))
		return nil
	},
}

var balanceCmd = &cli.Command{
	Name:  "balance",
	Usage: "show the balance of an account",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "account", Required: true},
	},
	Action: func(c *cli.Context) error {
		svc, err := openVault(false)
		if err != nil {
			return err
		}
		defer svc.Close()
		balance, err := svc.GetBalance(context.Background(), c.String("account"))
		if err != nil {
			return err
		}
		fmt.Printf(
			"confirmed: %d sats\nunconfirmed: %d sats\ntotal: %s BTC\n",
			balance.ConfirmedSats, balance.UnconfirmedSats,
			balance.TotalBTC.String(),
		)
		return nil
	},
}

var txCmd = &cli.Command{
	Name:  "tx",
	Usage: "manage transactions",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "list tracked transactions",
			Action: func(c *cli.Context) error {
				svc, err := openVault(false)
				if err != nil {
					return err
				}
				defer svc.Close()
				txs, err := svc.ListTxs(context.Background())
				if err != nil {
					return err
				}
				for _, tx := range txs {
					fmt.Printf(
						"%s\t%s\theight=%d\n",
						tx.UnsignedHash, tx.Status, tx.BlockHeight,
					)
				}
				return nil
			},
		},
		{
			Name:  "sign",
			Usage: "sign a raw transaction in hex",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "hex", Required: true},
			},
			Action: func(c *cli.Context) error {
				svc, err := openVault(false)
				if err != nil {
					return err
				}
				defer svc.Close()
				rawTx, err := hex.DecodeString(c.String("hex"))
				if err != nil {
					return err
				}
				signed, err := svc.SignRawTransaction(context.Background(), rawTx)
				if err != nil {
					return err
				}
				fmt.Println(hex.EncodeToString(signed))
				return nil
			},
		},
		{
			Name:  "insert",
			Usage: "insert a raw transaction in hex",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "hex", Required: true},
			},
			Action: func(c *cli.Context) error {
				svc, err := openVault(false)
				if err != nil {
					return err
				}
				defer svc.Close()
				rawTx, err := hex.DecodeString(c.String("hex"))
				if err != nil {
					return err
				}
				return svc.InsertRawTransaction(context.Background(), rawTx)
			},
		},
	},
}

func lockKeyBytes(c *cli.Context) []byte {
	lockKey := c.String("lockkey")
	if len(lockKey) <= 0 {
		return nil
	}
	return []byte(lockKey)
}
