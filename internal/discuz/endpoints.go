package discuz

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/ohmynofan/gamemale-checkin-bot/pkg/utils"
)

const (
	seccodeIDHash = "cSA"
	seccodeModID  = "member::logging"
	// cookieTime is the "remember me" duration the login form offers (30 days).
	cookieTime = 2592000
)

// Endpoints builds the forum URLs the bot uses, rooted at one origin.
type Endpoints struct {
	base string
}

func NewEndpoints(baseURL string) Endpoints {
	return Endpoints{base: strings.TrimRight(baseURL, "/")}
}

func (e Endpoints) Referer() string {
	return e.base + "/"
}

type loginPageQuery struct {
	Mod    string `url:"mod"`
	Action string `url:"action"`
}

type loginSubmitQuery struct {
	Mod         string `url:"mod"`
	Action      string `url:"action"`
	LoginSubmit string `url:"loginsubmit"`
	LoginHash   string `url:"loginhash"`
	InAjax      int    `url:"inajax"`
}

type seccodeUpdateQuery struct {
	Mod    string `url:"mod"`
	Action string `url:"action"`
	IDHash string `url:"idhash"`
	ModID  string `url:"modid"`
}

type seccodeImageQuery struct {
	Mod    string `url:"mod"`
	Update string `url:"update"`
	IDHash string `url:"idhash"`
}

type seccodeCheckQuery struct {
	Mod       string `url:"mod"`
	Action    string `url:"action"`
	InAjax    int    `url:"inajax"`
	ModID     string `url:"modid"`
	IDHash    string `url:"idhash"`
	SecVerify string `url:"secverify"`
}

type checkinQuery struct {
	Operation string `url:"operation"`
	Format    string `url:"format"`
	Formhash  string `url:"formhash"`
}

type lotteryQuery struct {
	ID       string `url:"id"`
	AC       string `url:"ac"`
	Formhash string `url:"formhash"`
}

func (e Endpoints) build(path string, params interface{}) string {
	v, err := utils.EncodeURLParams(params)
	if err != nil {
		// params are always package-local structs
		panic(fmt.Sprintf("discuz: encode %s: %v", path, err))
	}
	return e.base + path + "?" + v.Encode()
}

func (e Endpoints) LoginPage() string {
	return e.build("/member.php", loginPageQuery{Mod: "logging", Action: "login"})
}

func (e Endpoints) LoginSubmit(loginhash string) string {
	return e.build("/member.php", loginSubmitQuery{
		Mod:         "logging",
		Action:      "login",
		LoginSubmit: "yes",
		LoginHash:   loginhash,
		InAjax:      1,
	})
}

// SeccodeUpdate asks the server to rotate the challenge. The trailing bare
// random number busts intermediate caches the way the forum's own script does.
func (e Endpoints) SeccodeUpdate() string {
	u := e.build("/misc.php", seccodeUpdateQuery{
		Mod:    "seccode",
		Action: "update",
		IDHash: seccodeIDHash,
		ModID:  seccodeModID,
	})
	return u + "&" + strconv.FormatFloat(rand.Float64(), 'f', 8, 64)
}

func (e Endpoints) SeccodeImage(update string) string {
	return e.build("/misc.php", seccodeImageQuery{Mod: "seccode", Update: update, IDHash: seccodeIDHash})
}

func (e Endpoints) SeccodeCheck(answer string) string {
	return e.build("/misc.php", seccodeCheckQuery{
		Mod:       "seccode",
		Action:    "check",
		InAjax:    1,
		ModID:     seccodeModID,
		IDHash:    seccodeIDHash,
		SecVerify: answer,
	})
}

func (e Endpoints) Forum() string {
	return e.base + "/forum.php"
}

func (e Endpoints) Checkin(formhash string) string {
	return e.build("/k_misign-sign.html", checkinQuery{Operation: "qiandao", Format: "button", Formhash: formhash})
}

func (e Endpoints) Lottery(formhash string) string {
	return e.build("/plugin.php", lotteryQuery{ID: "it618_award:ajax", AC: "getaward", Formhash: formhash})
}
