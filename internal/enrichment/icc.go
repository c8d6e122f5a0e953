package enrichment

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// ICCTag is one BER-TLV element from DE55.
type ICCTag struct {
	Tag      string   `json:"tag"`
	Name     string   `json:"name,omitempty"`
	Value    string   `json:"value"`
	Children []ICCTag `json:"children,omitempty"`
}

var iccTagNames = map[string]string{
	"4F":   "Application Identifier",
	"50":   "Application Label",
	"57":   "Track 2 Equivalent Data",
	"5A":   "Application PAN",
	"5F24": "Application Expiration Date",
	"5F2A": "Transaction Currency Code",
	"5F34": "PAN Sequence Number",
	"70":   "Record Template",
	"71":   "Issuer Script Template 1",
	"72":   "Issuer Script Template 2",
	"82":   "Application Interchange Profile",
	"84":   "Dedicated File Name",
	"8A":   "Authorisation Response Code",
	"91":   "Issuer Authentication Data",
	"95":   "Terminal Verification Results",
	"9A":   "Transaction Date",
	"9C":   "Transaction Type",
	"9F02": "Amount, Authorised",
	"9F03": "Amount, Other",
	"9F09": "Application Version Number",
	"9F10": "Issuer Application Data",
	"9F1A": "Terminal Country Code",
	"9F1E": "Interface Device Serial Number",
	"9F26": "Application Cryptogram",
	"9F27": "Cryptogram Information Data",
	"9F33": "Terminal Capabilities",
	"9F34": "CVM Results",
	"9F35": "Terminal Type",
	"9F36": "Application Transaction Counter",
	"9F37": "Unpredictable Number",
	"9F41": "Transaction Sequence Counter",
}

// ICCTagName returns the EMV name of tag, or "".
func ICCTagName(tag string) string {
	return iccTagNames[strings.ToUpper(tag)]
}

// ICCTags decodes DE55 hex into its TLV elements.
func ICCTags(rawHex string) ([]ICCTag, error) {
	data, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("icc data: %w", err)
	}
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("BER-TLV decode failed: %w", err)
	}
	return convertTLVs(packets), nil
}

func convertTLVs(packets []bertlv.TLV) []ICCTag {
	tags := make([]ICCTag, 0, len(packets))
	for _, p := range packets {
		tag := strings.ToUpper(p.Tag)
		t := ICCTag{
			Tag:   tag,
			Name:  iccTagNames[tag],
			Value: strings.ToUpper(hex.EncodeToString(p.Value)),
		}
		if len(p.TLVs) > 0 {
			t.Children = convertTLVs(p.TLVs)
			t.Value = ""
		}
		tags = append(tags, t)
	}
	return tags
}
