package engine

// defaultSource names rules that ship with the engine.
const defaultSource = "default"

// defaultRules is loaded on every rebuild before any configured list.
// The parser skips the query-parameter rules.
const defaultRules = `! major ad networks
||doubleclick.net^
||googleadservices.com^
||googlesyndication.com^
||googletagmanager.com^
||googletagservices.com^
||google-analytics.com^
||googleanalytics.com^
||adsense.com^
||adsystem.com^
||amazon-adsystem.com^
||facebook.com/tr^
||connect.facebook.net^
||fbcdn.net/tr^

! tracking & analytics
||scorecardresearch.com^
||quantserve.com^
||comscore.com^
||omniture.com^
||adobe.com/b/ss/^
||chartbeat.com^
||hotjar.com^
||fullstory.com^
||mouseflow.com^
||crazyegg.com^
||mixpanel.com^
||segment.com^
||amplitude.com^

! social media trackers
||addthis.com^
||sharethis.com^
||addtoany.com^
||pinterest.com/ct/^
||twitter.com/i/adsct^
||linkedin.com/px/^
||snapchat.com/tr^
||tiktok.com/i18n/pixel^

! content recommendation
||outbrain.com^
||taboola.com^
||revcontent.com^
||mgid.com^
||content.ad^
||zemanta.com^
||plista.com^
||ligatus.com^

! video ad networks
||imasdk.googleapis.com^
||doubleclick.net/instream/ad_status.js^
||youtube.com/api/stats/ads^
||googlevideo.com/videoplayback^$redirect=noopmp4-1s
||brightcove.com/services/messagebroker/amf^

! popup & redirect networks
||popads.net^
||popcash.net^
||propellerads.com^
||adnxs.com^
||adsystem.com^
||exoclick.com^
||juicyads.com^
||trafficjunky.net^
||plugrush.com^
||adsterra.com^
||hilltopads.net^
||clickadu.com^
||adspyglass.com^

! cryptocurrency miners
||coinhive.com^
||coin-hive.com^
||cnhv.co^
||jsecoin.com^
||minero.cc^
||crypto-loot.com^
||webminepool.com^
||deepminer.net^

! malware & phishing
||malware.com^
||phishing.com^
||scam.com^
||virus.com^

! path-based blocking
/ads/*
/ad/*
/advertisement/*
/advertising/*
/tracker/*
/analytics/*
/tracking/*
/pixel.gif*
/beacon.gif*
/collect?*
/track?*
/event?*
/impression?*
/click?*
/redirect?*
/popup*
/popunder*
/interstitial*
/overlay*
/modal*
/lightbox*

! query parameter blocking
$removeparam=utm_source
$removeparam=utm_medium
$removeparam=utm_campaign
$removeparam=utm_content
$removeparam=utm_term
$removeparam=gclid
$removeparam=fbclid
$removeparam=msclkid
$removeparam=twclid

! element hiding (css selectors)
##.ad
##.ads
##.advertisement
##.advertising
##.sponsor
##.sponsored
##.popup
##.popunder
##.overlay
##.modal
##.interstitial
##[id*="ad"]
##[class*="ad"]
##[id*="ads"]
##[class*="ads"]
##[id*="sponsor"]
##[class*="sponsor"]
##[id*="popup"]
##[class*="popup"]

! wildcard patterns
*ads*
*advertisement*
*advertising*
*tracker*
*analytics*
*tracking*
*doubleclick*
*googleads*
*googlesyndication*
*facebook.com/tr*
*outbrain*
*taboola*
*popup*
*popunder*
*redirect*

! specific streaming site patterns
||ads.yahoo.com^
||advertising.com^
||adsystem.com^
||adnxs.com^
||adsafeprotected.com^
||moatads.com^
||adsymptotic.com^
||amazon-adsystem.com^
||googlesyndication.com/safeframe^
||tpc.googlesyndication.com^
||pagead2.googlesyndication.com^
||partner.googleadservices.com^
||googleadservices.com/pagead^
||doubleclick.net/gampad^
||securepubads.g.doubleclick.net^

! mobile specific
||admob.com^
||chartboost.com^
||flurry.com^
||inmobi.com^
||millennialmedia.com^
||mobclix.com^
||tapjoy.com^
||unity3d.com/webgl^

! whitelist exceptions
@@||moviehive.pro^
@@||123moviesfree.net^
@@||ww5.123moviesfree.net^
@@||github.com^
@@||stackoverflow.com^
@@||mozilla.org^
@@||wikipedia.org^
`
